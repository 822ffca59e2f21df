package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
)

var history = []entities.Message{
	{Role: entities.RoleUser, Content: "What is Go?"},
	{Role: entities.RoleAssistant, Content: "A programming language."},
}

func TestSanitizeID(t *testing.T) {
	tests := map[string]string{
		"abc-123_X": "abc-123_X",
		"  ":        "default",
		" trim-me ": "trim-me",
	}
	for in, want := range tests {
		if got := SanitizeID(in); got != want {
			t.Errorf("SanitizeID(%q) = %q, want %q", in, got, want)
		}
	}

	got := SanitizeID("../etc/pass")
	if !strings.HasPrefix(got, "___etc_pass-") || len(got) != len("___etc_pass-")+8 {
		t.Errorf("SanitizeID(../etc/pass) = %q", got)
	}
	if SanitizeID("../etc/pass") != got {
		t.Error("SanitizeID is not deterministic")
	}
}

func TestSanitizeID_DistinctIDsStayDistinct(t *testing.T) {
	ids := []string{"a_b", "a.b", "a/b", "a b", "héllo", "h_llo"}
	seen := map[string]string{}
	for _, id := range ids {
		name := SanitizeID(id)
		if prev, ok := seen[name]; ok {
			t.Errorf("%q and %q both map to %q", prev, id, name)
		}
		seen[name] = id
	}
}

func testStores(t *testing.T) map[string]ports.SessionStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	db, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return map[string]ports.SessionStore{"file": fs, "sqlite": db}
}

func TestStores_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			msgs, err := store.Load(ctx, "missing")
			if err != nil {
				t.Fatalf("load missing: %v", err)
			}
			if len(msgs) != 0 {
				t.Errorf("expected empty history, got %v", msgs)
			}

			if err := store.Save(ctx, "s1", history); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := store.Load(ctx, "s1")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if diff := cmp.Diff(history, got); diff != "" {
				t.Errorf("history mismatch (-want +got):\n%s", diff)
			}

			shorter := history[1:]
			if err := store.Save(ctx, "s1", shorter); err != nil {
				t.Fatalf("resave: %v", err)
			}
			got, _ = store.Load(ctx, "s1")
			if diff := cmp.Diff(shorter, got); diff != "" {
				t.Errorf("save should replace (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFileStore_FileNameAndSanitizing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	if err := store.Save(context.Background(), "../evil", history); err != nil {
		t.Fatalf("save: %v", err)
	}
	path := store.Path("../evil")
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "ollama_context____evil-") {
		t.Errorf("unexpected session path %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected sanitized session file: %v", err)
	}
}

func TestStores_LookalikeIDsKeepSeparateHistory(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Save(ctx, "a_b", history[:1]); err != nil {
				t.Fatalf("save a_b: %v", err)
			}
			if err := store.Save(ctx, "a.b", history); err != nil {
				t.Fatalf("save a.b: %v", err)
			}
			got, _ := store.Load(ctx, "a_b")
			if diff := cmp.Diff(history[:1], got); diff != "" {
				t.Errorf("a_b history overwritten (-want +got):\n%s", diff)
			}
			got, _ = store.Load(ctx, "a.b")
			if diff := cmp.Diff(history, got); diff != "" {
				t.Errorf("a.b history mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSQLiteStore_Count(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	store.Save(ctx, "a", history)
	store.Save(ctx, "b", history[:1])

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 sessions, got %d", n)
	}
}

package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
)

func TestFSNotifyWatcher_DefaultExtensions(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	if len(watcher.extensions) != 2 {
		t.Errorf("expected 2 default extensions, got %d", len(watcher.extensions))
	}
}

func waitFor(t *testing.T, events <-chan ports.FileEvent, want ports.FileOperation, name string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("event channel closed")
			}
			if ev.Operation == want && filepath.Base(ev.Path) == name {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %v on %s", want, name)
		}
	}
}

func TestFSNotifyWatcher_CreateAndRemove(t *testing.T) {
	dir := t.TempDir()
	watcher, _ := NewFSNotifyWatcher([]string{".txt"}, nil)
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	path := filepath.Join(dir, "notes.TXT")
	os.WriteFile(path, []byte("hi"), 0644)
	waitFor(t, events, ports.FileCreated, "notes.TXT")

	os.Remove(path)
	waitFor(t, events, ports.FileDeleted, "notes.TXT")
}

func TestFSNotifyWatcher_Subdirectories(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing")
	os.Mkdir(existing, 0755)

	watcher, _ := NewFSNotifyWatcher(nil, nil)
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	os.WriteFile(filepath.Join(existing, "a.md"), []byte("# a"), 0644)
	waitFor(t, events, ports.FileCreated, "a.md")

	fresh := filepath.Join(dir, "fresh")
	os.Mkdir(fresh, 0755)
	time.Sleep(200 * time.Millisecond)
	os.WriteFile(filepath.Join(fresh, "b.md"), []byte("# b"), 0644)
	waitFor(t, events, ports.FileCreated, "b.md")
}

func TestFSNotifyWatcher_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	watcher, _ := NewFSNotifyWatcher([]string{".txt"}, nil)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events, _ := watcher.Watch(ctx, dir)
	os.WriteFile(filepath.Join(dir, "test.json"), []byte("{}"), 0644)

	select {
	case <-events:
		t.Error("should not receive event for .json")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFSNotifyWatcher_MissingDir(t *testing.T) {
	watcher, _ := NewFSNotifyWatcher(nil, nil)
	defer watcher.Stop()

	if _, err := watcher.Watch(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestFSNotifyWatcher_StopTwice(t *testing.T) {
	watcher, _ := NewFSNotifyWatcher(nil, nil)
	if err := watcher.Stop(); err != nil {
		t.Errorf("stop failed: %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("second stop failed: %v", err)
	}
}

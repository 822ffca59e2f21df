package entities

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBudgets_Sum(t *testing.T) {
	b := Budgets{KB: 1600, Live: 1200, API: 720, Images: 240, UserImages: 240}
	if b.Sum() != 4000 {
		t.Errorf("expected 4000, got %d", b.Sum())
	}
}

func TestClampContextChars(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultContextChars},
		{-5, DefaultContextChars},
		{100, MinContextChars},
		{5000, 5000},
		{9_000_000, MaxContextChars},
	}
	for _, tt := range tests {
		if got := ClampContextChars(tt.in); got != tt.want {
			t.Errorf("ClampContextChars(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSamplingOptions_Normalized(t *testing.T) {
	o := SamplingOptions{Temperature: 5, NumPredict: 256, TopP: 3, NumCtx: -1}.Normalized()
	d := DefaultSamplingOptions()

	if o.Temperature != d.Temperature {
		t.Errorf("temperature out of range should reset, got %v", o.Temperature)
	}
	if o.NumPredict != 256 {
		t.Errorf("valid num_predict should be kept, got %d", o.NumPredict)
	}
	if o.TopP != d.TopP || o.TopK != d.TopK {
		t.Errorf("top_p/top_k should take defaults, got %v/%d", o.TopP, o.TopK)
	}
	if o.NumCtx != 0 {
		t.Errorf("negative num_ctx should be dropped, got %d", o.NumCtx)
	}
}

func TestKeepAlive(t *testing.T) {
	if got := KeepAlive(10, "minutes"); got != "10m" {
		t.Errorf("expected 10m, got %s", got)
	}
	if got := KeepAlive(1, "hours"); got != "1h" {
		t.Errorf("expected 1h, got %s", got)
	}
	if got := KeepAlive(-2, ""); got != "0m" {
		t.Errorf("expected 0m, got %s", got)
	}
}

func TestNumberedSource_JSONIsFlat(t *testing.T) {
	ns := NumberedSource{N: 2, SourceRecord: SourceRecord{Type: "kb", Title: "A", URL: "/a"}}
	b, err := json.Marshal(ns)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(b) != `{"n":2,"type":"kb","title":"A","url":"/a"}` {
		t.Errorf("unexpected json: %s", b)
	}
}

func TestMessage_ImagesOmittedWhenEmpty(t *testing.T) {
	b, _ := json.Marshal(Message{Role: RoleUser, Content: "hi"})
	if strings.Contains(string(b), "images") {
		t.Errorf("images should be omitted: %s", b)
	}
}

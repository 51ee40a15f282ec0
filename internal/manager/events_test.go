package manager

import (
	"context"
	"reflect"
	"testing"

	"inferd/internal/store"
)

// The publisher must see the full lifecycle in order: a load brackets with
// load_start/load_ready, a repeat acquire is a cache_hit, residency-limit
// eviction and explicit release are announced, and a failed load emits
// load_error with the reason attached.
func TestLifecycleEventSequence(t *testing.T) {
	eng := &fakeEngine{}
	s, err := store.Open(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	for _, id := range []string{"model-a", "model-b"} {
		if err := s.Put(typesRecord(id), []byte("artifact-"+id)); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	pub := NewMemoryPublisher()
	m := New(Config{Store: s, Engine: eng, ResidencyLimit: 1, Publisher: pub})
	t.Cleanup(m.Close)
	ctx := context.Background()

	if _, err := m.AcquireReady(ctx, "model-a"); err != nil {
		t.Fatalf("acquire model-a: %v", err)
	}
	if _, err := m.AcquireReady(ctx, "model-a"); err != nil {
		t.Fatalf("re-acquire model-a: %v", err)
	}
	// Loading model-b pushes model-a out (residency limit 1).
	if _, err := m.AcquireReady(ctx, "model-b"); err != nil {
		t.Fatalf("acquire model-b: %v", err)
	}
	if _, err := m.AcquireReady(ctx, "ghost"); !store.IsNotFound(err) {
		t.Fatalf("expected not-found for ghost, got %v", err)
	}
	if err := m.Release("model-b"); err != nil {
		t.Fatalf("release model-b: %v", err)
	}

	want := []string{
		"load_start", "load_ready", // model-a
		"cache_hit",                // model-a again
		"load_start", "load_ready", // model-b
		"evict",                  // model-a pushed out
		"load_start", "load_error", // ghost
		"release", // model-b
	}
	if got := pub.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("event sequence %v, want %v", got, want)
	}

	for _, e := range pub.Events() {
		switch e.Name {
		case "evict":
			if e.ModelID != "model-a" {
				t.Fatalf("evicted %s, want model-a", e.ModelID)
			}
		case "release":
			if e.ModelID != "model-b" {
				t.Fatalf("released %s, want model-b", e.ModelID)
			}
		case "load_error":
			if e.Fields["error"] == "" || e.Fields["error"] == nil {
				t.Fatalf("load_error carries no reason: %+v", e)
			}
		}
	}

	pub.Reset()
	if len(pub.Events()) != 0 {
		t.Fatalf("reset left %d events", len(pub.Events()))
	}
}

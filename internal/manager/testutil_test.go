package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"inferd/internal/engine"
	"inferd/internal/store"
	"inferd/pkg/types"
)

// fakeHandle records Close calls for leak assertions.
type fakeHandle struct {
	path   string
	closed int32
}

func (h *fakeHandle) ModelPath() string { return h.path }
func (h *fakeHandle) Close() error {
	atomic.AddInt32(&h.closed, 1)
	return nil
}

func (h *fakeHandle) isClosed() bool { return atomic.LoadInt32(&h.closed) > 0 }

// fakeEngine counts physical loads and can be made slow or failing.
type fakeEngine struct {
	mu       sync.Mutex
	loads    int
	delay    time.Duration
	failWith error
	gate     chan struct{} // when set, Load blocks until the gate closes
}

func (e *fakeEngine) Load(ctx context.Context, path string) (engine.Handle, error) {
	e.mu.Lock()
	e.loads++
	delay, fail, gate := e.delay, e.failWith, e.gate
	e.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if fail != nil {
		return nil, fail
	}
	return &fakeHandle{path: path}, nil
}

func (e *fakeEngine) RunOnce(ctx context.Context, h engine.Handle, input string) (string, error) {
	return "ok:" + input, nil
}

func (e *fakeEngine) loadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

func (e *fakeEngine) setFailure(err error) {
	e.mu.Lock()
	e.failWith = err
	e.mu.Unlock()
}

// newTestManager builds a store with the given model ids and a manager over
// a fake engine.
func newTestManager(t *testing.T, eng *fakeEngine, keep int, ids ...string) (*Manager, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	for _, id := range ids {
		if err := s.Put(types.ModelRecord{ID: id, DisplayName: id}, []byte("artifact-"+id)); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	m := New(Config{Store: s, Engine: eng, ResidencyLimit: keep})
	t.Cleanup(m.Close)
	return m, s
}

var errCorrupt = errors.New("artifact unreadable")

func typesRecord(id string) types.ModelRecord {
	return types.ModelRecord{ID: id, DisplayName: id}
}

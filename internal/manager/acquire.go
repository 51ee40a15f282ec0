package manager

import (
	"context"
	"time"

	"inferd/internal/engine"
	"inferd/internal/store"
)

// AcquireReady returns a ready handle for modelID, loading the model if it
// is not already resident. Concurrent callers for the same id share one
// physical load (single-flight) and all receive its outcome; callers for
// different ids never block each other during load I/O.
//
// A canceled waiter stops listening but does not cancel the shared load;
// the load runs to completion and later callers reuse its result.
func (m *Manager) AcquireReady(ctx context.Context, modelID string) (engine.Handle, error) {
	if modelID == "" {
		modelID = m.defaultModel
		if modelID == "" {
			return nil, store.ErrNotFound("(unspecified)")
		}
	}

	m.mu.Lock()
	if e, ok := m.cache[modelID]; ok {
		// Fast path: cache hit, no suspension beyond the map lookup.
		e.lastAccessedAt = time.Now()
		e.accessCount++
		h := e.handle
		m.mu.Unlock()
		cacheHitsTotal.Inc()
		m.publisher.Publish(Event{Name: "cache_hit", ModelID: modelID})
		// Touch writes metadata; keep it off the lock.
		_ = m.store.Touch(modelID)
		return h, nil
	}
	if fl, ok := m.inflight[modelID]; ok {
		m.mu.Unlock()
		sharedWaitsTotal.Inc()
		select {
		case <-fl.done:
			return fl.handle, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	fl := &inFlightLoad{done: make(chan struct{})}
	m.inflight[modelID] = fl
	m.mu.Unlock()

	// The load is shared work: detach it from this caller's cancellation so
	// other waiters still get a result if this caller goes away.
	h, err := m.load(context.WithoutCancel(ctx), modelID)

	m.mu.Lock()
	delete(m.inflight, modelID)
	if err == nil {
		now := time.Now()
		m.cache[modelID] = &entry{
			handle:         h,
			loadedAt:       now,
			lastAccessedAt: now,
			accessCount:    1,
		}
		m.loadsTotal++
		m.lastErr = ""
	} else {
		// Failures are never cached; the next call starts a fresh attempt.
		m.lastErr = err.Error()
	}
	m.mu.Unlock()
	fl.handle, fl.err = h, err
	close(fl.done)

	if err == nil {
		loadsTotal.Inc()
		m.publisher.Publish(Event{Name: "load_ready", ModelID: modelID})
		if m.keep > 0 {
			m.EvictToResidencyLimit(m.keep)
		}
	} else {
		m.publisher.Publish(Event{Name: "load_error", ModelID: modelID, Fields: map[string]any{"error": err.Error()}})
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return h, err
}

// load resolves the artifact path via the store, records the access, and
// performs the physical load. Called with no manager lock held.
func (m *Manager) load(ctx context.Context, modelID string) (engine.Handle, error) {
	m.publisher.Publish(Event{Name: "load_start", ModelID: modelID})
	rec, ok := m.store.Get(modelID)
	if !ok {
		return nil, store.ErrNotFound(modelID)
	}
	if err := m.store.Touch(modelID); err != nil {
		return nil, err
	}
	h, err := m.engine.Load(ctx, rec.StoragePath)
	if err != nil {
		if engine.IsUnavailable(err) {
			return nil, err
		}
		return nil, ErrLoadFailed(modelID, err)
	}
	return h, nil
}

package manager

import "inferd/internal/store"

// Release explicitly unloads one entry regardless of the residency limit,
// used on memory-pressure signals. Returns a not-found error when the model
// is not resident in memory.
func (m *Manager) Release(modelID string) error {
	m.mu.Lock()
	e, ok := m.cache[modelID]
	if !ok {
		m.mu.Unlock()
		return store.ErrNotFound(modelID)
	}
	delete(m.cache, modelID)
	m.mu.Unlock()

	_ = e.handle.Close()
	m.publisher.Publish(Event{Name: "release", ModelID: modelID})
	return nil
}

// Close releases every resident entry. Callers stop submitting work before
// Close; a load racing shutdown finishes on its own and its handle is
// reclaimed with the process.
func (m *Manager) Close() {
	m.EvictToResidencyLimit(0)
}

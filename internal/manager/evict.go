package manager

import (
	"sort"

	"inferd/internal/engine"
)

// EvictToResidencyLimit keeps the keep most-recently-accessed in-memory
// entries and releases the rest, freeing the underlying model memory. Disk
// artifacts are untouched. keep <= 0 releases everything.
func (m *Manager) EvictToResidencyLimit(keep int) {
	if keep < 0 {
		keep = 0
	}
	m.mu.Lock()
	if len(m.cache) <= keep {
		m.mu.Unlock()
		return
	}
	type ranked struct {
		id string
		e  *entry
	}
	all := make([]ranked, 0, len(m.cache))
	for id, e := range m.cache {
		all = append(all, ranked{id: id, e: e})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].e.lastAccessedAt.After(all[j].e.lastAccessedAt)
	})
	victims := all[keep:]
	handles := make([]engine.Handle, 0, len(victims))
	ids := make([]string, 0, len(victims))
	for _, v := range victims {
		delete(m.cache, v.id)
		handles = append(handles, v.e.handle)
		ids = append(ids, v.id)
	}
	m.mu.Unlock()

	// Close outside the lock; freeing model memory can be slow.
	for i, h := range handles {
		_ = h.Close()
		m.publisher.Publish(Event{Name: "evict", ModelID: ids[i]})
	}
}

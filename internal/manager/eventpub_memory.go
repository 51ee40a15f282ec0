package manager

import "sync"

// MemoryPublisher records published events in order. Tests attach one to a
// Manager to assert the lifecycle sequence a scenario produces (load_start,
// load_ready, cache_hit, evict, ...) without a real sink.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher returns an empty recording publisher.
func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

// Publish appends e. Safe for concurrent use.
func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

// Events returns a copy of everything recorded so far, in publish order.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns just the recorded event names, in publish order.
func (p *MemoryPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.events))
	for i, e := range p.events {
		names[i] = e.Name
	}
	return names
}

// Reset discards everything recorded so far.
func (p *MemoryPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

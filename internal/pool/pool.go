// Package pool provides a bounded pool of reusable inference scratch
// contexts. Acquire never blocks: when the free-list is empty a fresh
// context is allocated, and Release simply discards contexts beyond the
// configured capacity.
package pool

import "sync"

// Default buffer capacity for newly allocated contexts.
const defaultBufCap = 4096

// Context holds the scratch buffers an inference call writes into.
// Buffers are reset (length, not capacity) between uses.
type Context struct {
	Input  []byte
	Output []byte
	Meta   map[string]string
}

// Ticket identifies a single acquisition. Release requires the ticket, so a
// context cannot be returned by a caller that never acquired it, and a stale
// ticket makes the second release a no-op.
type Ticket struct {
	seq uint64
}

// Pool manages a fixed-capacity free-list of contexts plus an in-use set
// keyed by ticket.
type Pool struct {
	mu      sync.Mutex
	free    []*Context
	inUse   map[uint64]*Context
	nextSeq uint64
	size    int
	bufCap  int
}

// Stats is a point-in-time occupancy snapshot.
type Stats struct {
	Free  int
	InUse int
	Total int
}

// New constructs a pool retaining at most size contexts on the free-list.
// size <= 0 falls back to 1.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		inUse:  make(map[uint64]*Context),
		size:   size,
		bufCap: defaultBufCap,
	}
}

// Acquire returns a free context or allocates a new one. It never blocks
// waiting for a release; overflow beyond the pool size is permitted.
func (p *Pool) Acquire() (*Context, Ticket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var c *Context
	if n := len(p.free); n > 0 {
		c = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	} else {
		c = &Context{
			Input:  make([]byte, 0, p.bufCap),
			Output: make([]byte, 0, p.bufCap),
			Meta:   make(map[string]string),
		}
	}
	p.nextSeq++
	t := Ticket{seq: p.nextSeq}
	p.inUse[t.seq] = c
	return c, t
}

// Release resets the context behind t and returns it to the free-list, or
// discards it if the free-list is already at capacity. Releasing a ticket
// that is not currently in use is a no-op.
func (p *Pool) Release(t Ticket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.inUse[t.seq]
	if !ok {
		return
	}
	delete(p.inUse, t.seq)
	if len(p.free) >= p.size {
		// Over capacity: drop the context and let GC reclaim it.
		return
	}
	c.Input = c.Input[:0]
	c.Output = c.Output[:0]
	for k := range c.Meta {
		delete(c.Meta, k)
	}
	p.free = append(p.free, c)
}

// Statistics reports current free/in-use counts.
func (p *Pool) Statistics() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Free:  len(p.free),
		InUse: len(p.inUse),
		Total: len(p.free) + len(p.inUse),
	}
}

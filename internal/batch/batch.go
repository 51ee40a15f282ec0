// Package batch groups inference calls that arrive close together in time,
// amortizing the fixed per-call overhead. A batch dispatches when it reaches
// the configured size or when the flush window for its first request
// expires, whichever comes first. Result assignment is positional within a
// batch; there is no cross-batch ordering guarantee.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default flush window applied when Submit passes no timeout.
const defaultWindow = 100 * time.Millisecond

// Runner executes one dispatched batch. It must return exactly one output
// per input, or an error that then fails every request in the batch.
type Runner func(inputs []string) ([]string, error)

// request is owned by the batcher from enqueue until fulfillment. done is
// buffered so a dispatch never blocks on a slow (or gone) waiter.
type request struct {
	id        string
	input     string
	done      chan Result
	abandoned bool
}

// Result is the outcome delivered to one waiter.
type Result struct {
	ID     string
	Output string
	Err    error
}

// Batcher accumulates pending requests and dispatches them as batches.
// timerGen invalidates flush callbacks from a timer that fired after its
// batch already dispatched by size: Stop cannot unqueue a fired callback,
// so each armed timer carries the generation it was armed for and flush
// ignores any other.
type Batcher struct {
	mu       sync.Mutex
	pending  []*request
	timer    *time.Timer
	timerGen uint64
	size     int
	window   time.Duration
	runner   Runner
	closed   bool
	wg       sync.WaitGroup
}

// Future is a single-assignment slot for one submitted request.
type Future struct {
	b   *Batcher
	req *request
}

// New constructs a batcher dispatching at size requests per batch. size <= 0
// falls back to 1 (every request dispatches immediately).
func New(size int, window time.Duration, runner Runner) *Batcher {
	if size <= 0 {
		size = 1
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &Batcher{size: size, window: window, runner: runner}
}

// Submit appends a request to the pending batch. Reaching the batch size
// dispatches immediately; otherwise the first pending request arms a flush
// timer of timeout (the batcher default when timeout <= 0), which dispatches
// whatever is pending when it fires.
func (b *Batcher) Submit(input string, timeout time.Duration) *Future {
	req := &request{
		id:    uuid.NewString(),
		input: input,
		done:  make(chan Result, 1),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		req.done <- Result{ID: req.id, Err: fmt.Errorf("batcher closed")}
		return &Future{b: b, req: req}
	}
	b.pending = append(b.pending, req)
	if len(b.pending) >= b.size {
		b.dispatchLocked()
	} else if len(b.pending) == 1 {
		w := timeout
		if w <= 0 {
			w = b.window
		}
		b.timerGen++
		gen := b.timerGen
		b.timer = time.AfterFunc(w, func() { b.flush(gen) })
	}
	b.mu.Unlock()
	return &Future{b: b, req: req}
}

// flush dispatches whatever is pending when the window timer for gen fires.
// A callback whose generation no longer matches comes from a timer that
// fired while (or after) its batch dispatched by size; acting on it would
// cut the window of the batch that is pending now, so it is dropped.
func (b *Batcher) flush(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.timerGen {
		return
	}
	if len(b.pending) > 0 {
		b.dispatchLocked()
	}
}

// dispatchLocked swaps out the pending list so requests arriving during the
// run start a new batch, cancels the flush timer, and runs the batch in the
// background. Caller holds b.mu.
func (b *Batcher) dispatchLocked() {
	batch := b.pending
	b.pending = nil
	b.timerGen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	dispatchesTotal.Inc()
	batchSize.Observe(float64(len(batch)))
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run(batch)
	}()
}

// run executes one batch and fulfills every slot exactly once, with the
// batch error on a failed dispatch so no request hangs forever. Requests
// abandoned before dispatch were already removed from the list; a request
// abandoned during the run still gets its result delivered into the
// buffered slot and silently discarded.
func (b *Batcher) run(batch []*request) {
	inputs := make([]string, len(batch))
	for i, r := range batch {
		inputs[i] = r.input
	}
	outputs, err := b.safeRun(inputs)
	if err == nil && len(outputs) != len(inputs) {
		err = fmt.Errorf("batch dispatch failed: runner returned %d results for %d inputs", len(outputs), len(inputs))
	}
	for i, r := range batch {
		if err != nil {
			r.done <- Result{ID: r.id, Err: err}
			continue
		}
		r.done <- Result{ID: r.id, Output: outputs[i]}
	}
}

// safeRun shields waiters from a panicking runner.
func (b *Batcher) safeRun(inputs []string) (outputs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs, err = nil, fmt.Errorf("batch dispatch failed: panic: %v", r)
		}
	}()
	return b.runner(inputs)
}

// Pending reports how many requests are waiting for dispatch.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close flushes any pending batch and waits for in-flight batches to finish.
// Further submissions fail immediately.
func (b *Batcher) Close() {
	b.mu.Lock()
	b.closed = true
	if len(b.pending) > 0 {
		b.dispatchLocked()
	} else if b.timer != nil {
		b.timerGen++
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
	b.wg.Wait()
}

// ID returns the request id assigned at submission.
func (f *Future) ID() string { return f.req.id }

// Wait blocks until the request's batch dispatches and returns its result.
// When ctx is canceled first, the request is dropped from the pending list
// if it has not dispatched yet (keeping the list consistent with what will
// dispatch), and any later result for it is silently discarded.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case res := <-f.req.done:
		return res.Output, res.Err
	case <-ctx.Done():
		f.b.abandon(f.req)
		return "", ctx.Err()
	}
}

// abandon removes req from the pending list if it is still there.
func (b *Batcher) abandon(req *request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req.abandoned = true
	for i, r := range b.pending {
		if r == req {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			if len(b.pending) == 0 && b.timer != nil {
				b.timerGen++
				b.timer.Stop()
				b.timer = nil
			}
			return
		}
	}
}

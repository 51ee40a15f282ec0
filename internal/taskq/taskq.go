// Package taskq runs background maintenance work under a fixed concurrency
// ceiling. Work is drained by a fixed set of worker goroutines so a queued
// task waits on a real suspension point, never a sleep-and-recheck loop.
package taskq

import (
	"context"
	"fmt"
	"sync"
)

// Task is a unit of background work. The context is the queue's base
// context and is canceled when the queue shuts down.
type Task func(ctx context.Context) error

// ErrorSink receives failures from tasks. One task's failure never affects
// other tasks; it is only reported here. Implementations must not panic.
type ErrorSink interface {
	TaskFailed(err error)
}

// SinkFunc adapts a plain function to ErrorSink.
type SinkFunc func(err error)

func (f SinkFunc) TaskFailed(err error) { f(err) }

type noopSink struct{}

func (noopSink) TaskFailed(error) {}

// Queue is a FIFO task queue drained by maxConcurrent workers.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Task
	closed  bool
	running int

	sink   ErrorSink
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts a queue with the given concurrency ceiling. maxConcurrent <= 0
// falls back to 1. A nil sink drops failure reports.
func New(maxConcurrent int, sink ErrorSink) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if sink == nil {
		sink = noopSink{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{sink: sink, ctx: ctx, cancel: cancel}
	q.cond = sync.NewCond(&q.mu)
	q.wg.Add(maxConcurrent)
	for i := 0; i < maxConcurrent; i++ {
		go q.worker()
	}
	return q
}

// Submit enqueues task without blocking the caller. Queued tasks start in
// submission order as workers free up. Submitting to a closed queue drops
// the task.
func (q *Queue) Submit(task Task) {
	if task == nil {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, task)
	q.mu.Unlock()
	q.cond.Signal()
}

// Len reports how many tasks are waiting for a worker slot.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Running reports how many tasks are currently executing.
func (q *Queue) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Close stops accepting work, cancels the base context handed to running
// tasks, and waits for workers to drain what was already queued.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.wg.Wait()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.cancel()
	q.cond.Broadcast()
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		task := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.running++
		q.mu.Unlock()

		q.run(task)

		q.mu.Lock()
		q.running--
		q.mu.Unlock()
	}
}

// run executes one task, converting a panic into a reported failure so a
// misbehaving task cannot take its worker down.
func (q *Queue) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.sink.TaskFailed(panicError{val: r})
		}
	}()
	if err := task(q.ctx); err != nil {
		q.sink.TaskFailed(err)
	}
}

type panicError struct{ val any }

func (e panicError) Error() string { return fmt.Sprintf("task panic: %v", e.val) }

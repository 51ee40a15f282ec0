package service

import (
	"context"
	"fmt"

	"inferd/internal/batch"
	"inferd/internal/store"
	"inferd/pkg/types"
)

// Infer routes one inference request through the per-model batcher and
// blocks until its batch dispatches (or ctx is canceled, which abandons the
// wait without canceling an already-dispatched batch).
func (s *Service) Infer(ctx context.Context, req types.InferRequest) (types.InferResponse, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = s.defaultModel
		if modelID == "" {
			return types.InferResponse{}, store.ErrNotFound("(unspecified)")
		}
	}
	b := s.batcherFor(modelID)
	fut := b.Submit(req.Input, 0)
	out, err := fut.Wait(ctx)
	if err != nil {
		return types.InferResponse{}, err
	}
	return types.InferResponse{RequestID: fut.ID(), Model: modelID, Output: out}, nil
}

// batcherFor returns the lazily created batcher for modelID. Batching is
// per model: one dispatched batch runs against exactly one handle.
func (s *Service) batcherFor(modelID string) *batch.Batcher {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	if b, ok := s.batchers[modelID]; ok {
		return b
	}
	b := batch.New(s.batchSize, s.batchWindow, s.runnerFor(modelID))
	s.batchers[modelID] = b
	return b
}

// runnerFor builds the dispatch function for one model's batches: acquire a
// ready handle, borrow a pool context for the duration of the batch, and run
// the engine once per request, preserving submission order.
func (s *Service) runnerFor(modelID string) batch.Runner {
	return func(inputs []string) ([]string, error) {
		// Batches run to completion regardless of individual waiters, so
		// the batch context is the daemon's, not any caller's.
		ctx := context.Background()
		h, err := s.mgr.AcquireReady(ctx, modelID)
		if err != nil {
			return nil, err
		}
		c, ticket := s.pool.Acquire()
		defer s.pool.Release(ticket)

		outputs := make([]string, len(inputs))
		for i, in := range inputs {
			c.Input = append(c.Input[:0], in...)
			out, err := s.engine.RunOnce(ctx, h, string(c.Input))
			if err != nil {
				return nil, fmt.Errorf("batch dispatch failed: %w", err)
			}
			c.Output = append(c.Output[:0], out...)
			outputs[i] = string(c.Output)
		}
		return outputs, nil
	}
}

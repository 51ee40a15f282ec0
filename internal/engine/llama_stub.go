//go:build !llama

package engine

// No-CGO stub compiled when the 'llama' build tag is NOT set, keeping
// default builds and CI CGO-free. The real adapter lives in llama.go
// (tagged 'llama'). The stub refuses to run rather than mock results.

import "context"

type llamaEngine struct {
	ctxSize int
	threads int
}

// NewLlama returns the llama.cpp-backed engine. Without the 'llama' build
// tag it fails fast on Load.
func NewLlama(ctxSize, threads int) Engine {
	return &llamaEngine{ctxSize: ctxSize, threads: threads}
}

func (e *llamaEngine) Load(ctx context.Context, path string) (Handle, error) {
	return nil, ErrUnavailable("llama support not built (missing 'llama' build tag)")
}

func (e *llamaEngine) RunOnce(ctx context.Context, h Handle, input string) (string, error) {
	return "", ErrUnavailable("llama support not built (missing 'llama' build tag)")
}

//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaEngine holds global config used to initialize model instances.
type llamaEngine struct {
	ctxSize int
	threads int
}

// NewLlama returns an in-process llama.cpp engine.
func NewLlama(ctxSize, threads int) Engine {
	if ctxSize <= 0 {
		ctxSize = 2048
	}
	if threads <= 0 {
		threads = 4
	}
	return &llamaEngine{ctxSize: ctxSize, threads: threads}
}

// llamaHandle owns one loaded model. The model object is not reentrant, so
// RunOnce serializes calls per handle.
type llamaHandle struct {
	mu    sync.Mutex
	path  string
	model *llama.LLama
}

func (h *llamaHandle) ModelPath() string { return h.path }

func (h *llamaHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}

func (e *llamaEngine) Load(ctx context.Context, path string) (Handle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := llama.New(path, llama.SetContext(e.ctxSize))
	if err != nil {
		return nil, err
	}
	return &llamaHandle{path: path, model: m}, nil
}

func (e *llamaEngine) RunOnce(ctx context.Context, h Handle, input string) (string, error) {
	lh, ok := h.(*llamaHandle)
	if !ok {
		return "", errors.New("handle was not produced by this engine")
	}
	lh.mu.Lock()
	defer lh.mu.Unlock()
	if lh.model == nil {
		return "", errors.New("model handle is closed")
	}
	lh.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})
	out, err := lh.model.Predict(input,
		llama.SetThreads(e.threads),
	)
	if err != nil {
		return "", err
	}
	if cerr := ctx.Err(); cerr != nil {
		return "", cerr
	}
	return out, nil
}

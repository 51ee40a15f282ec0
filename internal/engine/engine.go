// Package engine abstracts the neural inference runtime. The lifecycle
// layers above only ever see Load/RunOnce/Close; what happens inside a call
// is opaque and potentially slow.
package engine

import (
	"context"
	"errors"
)

// Handle is a model loaded into memory, ready for inference. Close releases
// the underlying model memory.
type Handle interface {
	// ModelPath returns the artifact path the handle was loaded from.
	ModelPath() string
	// Close releases resources associated with the loaded model.
	Close() error
}

// Engine loads model artifacts and runs single inference calls.
// Implementations must be safe for concurrent use; the batcher serializes
// calls per batch but separate models may run concurrently.
type Engine interface {
	// Load reads the artifact at path into memory. Implementations must
	// return promptly when the context is canceled.
	Load(ctx context.Context, path string) (Handle, error)
	// RunOnce executes one inference call against a loaded handle.
	RunOnce(ctx context.Context, h Handle, input string) (string, error)
}

// unavailableError signals that the runtime is not compiled into this
// binary, so the HTTP layer can return 503 instead of 500.
type unavailableError struct{ msg string }

func (e unavailableError) Error() string { return e.msg }

// ErrUnavailable constructs an unavailableError.
func ErrUnavailable(msg string) error { return unavailableError{msg: msg} }

// IsUnavailable reports whether err indicates a missing runtime dependency,
// however deeply wrapped.
func IsUnavailable(err error) bool {
	var ue unavailableError
	return errors.As(err, &ue)
}

package store

import (
	"errors"
	"fmt"
)

// notFoundError signals an id unknown to the store for 404 mapping.
type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "model not found: " + e.id }

// ErrNotFound returns an error for a model id with no record on disk.
func ErrNotFound(id string) error { return notFoundError{id: id} }

// IsNotFound reports whether err indicates a missing model id, however
// deeply wrapped.
func IsNotFound(err error) bool {
	var nf notFoundError
	return errors.As(err, &nf)
}

// quotaExceededError signals a single artifact larger than the whole quota.
// Eviction cannot help in that case, so the insert is refused outright.
type quotaExceededError struct {
	id    string
	size  int64
	quota int64
}

func (e quotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s needs %d bytes, quota is %d", e.id, e.size, e.quota)
}

// IsQuotaExceeded reports whether err indicates an artifact that can never
// fit, however deeply wrapped.
func IsQuotaExceeded(err error) bool {
	var qe quotaExceededError
	return errors.As(err, &qe)
}

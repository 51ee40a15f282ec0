package manager

import "errors"

// loadFailedError signals an artifact that could not be loaded, preserving
// the underlying reason for user-visible reporting.
type loadFailedError struct {
	id     string
	reason error
}

func (e loadFailedError) Error() string {
	return "model could not be loaded: " + e.reason.Error()
}

func (e loadFailedError) Unwrap() error { return e.reason }

// ErrLoadFailed wraps reason for model id.
func ErrLoadFailed(id string, reason error) error {
	return loadFailedError{id: id, reason: reason}
}

// IsLoadFailed reports whether err indicates a load failure.
func IsLoadFailed(err error) bool {
	var lf loadFailedError
	return errors.As(err, &lf)
}

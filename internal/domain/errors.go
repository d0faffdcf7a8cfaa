package domain

import (
	"errors"
	"fmt"
)

// ErrAPIKeyMissing is returned when a backend is constructed without a
// resolvable API key. Construction fails fast; there is no lazy retry.
var ErrAPIKeyMissing = errors.New("api key is required")

// TypeMismatchError reports an input to message normalization that is
// neither a Message, a list of Messages, nor nil. The turn aborts before
// any network call is made.
type TypeMismatchError struct {
	Got any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("input must be a Message or a list of Messages, got %T", e.Got)
}

// BackendUnavailableError reports a transport failure or non-2xx status
// from a generation dispatch. The contract never retries; the turn fails,
// the agent stays usable.
type BackendUnavailableError struct {
	Backend string
	Status  int
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("backend %s unavailable: status %d: %v", e.Backend, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("backend %s unavailable: status %d", e.Backend, e.Status)
	default:
		return fmt.Sprintf("backend %s unavailable: %v", e.Backend, e.Err)
	}
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// IsBackendUnavailable reports whether err wraps a BackendUnavailableError.
func IsBackendUnavailable(err error) bool {
	var be *BackendUnavailableError
	return errors.As(err, &be)
}

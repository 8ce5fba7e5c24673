package host

import (
	"errors"
	"fmt"
)

// ErrUnavailable is the host's "answered but cannot" result: the element
// exists but the query has no answer (unsupported attribute, range the
// framework refuses to resolve). Strategies treat it as "try the next one".
var ErrUnavailable = errors.New("host: query unavailable")

// ErrHostUnresponsive reports a foreign call that exceeded its timeout. The
// call may still complete inside the host later; its result is discarded.
var ErrHostUnresponsive = errors.New("host: unresponsive")

// QueryError wraps a failed foreign call with the operation that issued it.
type QueryError struct {
	Op      string
	Surface string
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("host: %s on %s: %v", e.Op, e.Surface, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

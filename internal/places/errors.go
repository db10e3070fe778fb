package places

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrInvalidQuery is returned before any network call when the niche or city
// is empty or no usable API key is configured.
var ErrInvalidQuery = errors.New("invalid query")

// ErrUpstreamUnavailable matches every failure talking to the places API.
var ErrUpstreamUnavailable = errors.New("places API unavailable")

// LookupFailure represents a failed call to the places API.
type LookupFailure struct {
	Query      string
	StatusCode int
	Message    string
	Cause      error
}

func (e *LookupFailure) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("places lookup failed for %q: %s: %v", e.Query, msg, e.Cause)
	}
	return fmt.Sprintf("places lookup failed for %q: %s", e.Query, msg)
}

func (e *LookupFailure) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrUpstreamUnavailable) match lookup failures.
func (e *LookupFailure) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

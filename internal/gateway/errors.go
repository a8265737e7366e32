package gateway

import (
	"errors"
	"fmt"
)

// Caller input errors, surfaced before any network I/O.
var (
	ErrMissingParameters = errors.New("missing required parameters")
	ErrAPIKeyRequired    = errors.New("api key required for this provider")
)

// ErrUpstreamTimeout indicates the bounded wait on the outbound call expired.
// Distinct from UpstreamError: "provider is slow or unreachable" is not
// "provider rejected the request".
var ErrUpstreamTimeout = errors.New("upstream call timed out")

// UpstreamError is a non-success HTTP response from the provider, surfaced to
// the caller verbatim and never retried.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d: %s", e.Status, e.Body)
}

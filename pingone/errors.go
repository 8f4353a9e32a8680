package pingone

import "errors"

// ErrTransport marks network/HTTP failures talking to the identity provider.
// ErrValidation marks well-formed responses missing required fields. Both are
// retryable from the polling engine's point of view; the distinction only
// matters for reporting.
var (
	ErrTransport  = errors.New("identity provider transport failure")
	ErrValidation = errors.New("identity provider response validation failure")
)

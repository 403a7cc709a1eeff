package ai

import "errors"

var (
	// ErrConfiguration means no credential is configured; it is never converted to a fallback.
	ErrConfiguration = errors.New("ai credential is not configured")

	ErrEmptyResponse  = errors.New("empty ai response")
	ErrNoJSONFound    = errors.New("no json returned")
	ErrMalformedJSON  = errors.New("malformed json in ai response")
	ErrSchemaMismatch = errors.New("ai response does not match schema")
	ErrUpstream       = errors.New("ai upstream error")
)

package tuner

import "errors"

var (
	// ErrInvalidConfiguration is fatal at startup: the engine refuses to start.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrMalformedRequest rejects a single round. No state changes and the
	// caller should answer with the current arm.
	ErrMalformedRequest = errors.New("malformed request")
)

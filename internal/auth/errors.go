package auth

import "errors"

// Domain-specific errors for vendor and API credentials.
var (
	// ErrAuthUnavailable means no usable vendor access token could be
	// obtained. No request is sent to the vendor when this is returned.
	ErrAuthUnavailable = errors.New("vendor authorization unavailable")

	// ErrTokenInvalid means a local API bearer token failed validation.
	ErrTokenInvalid = errors.New("invalid token")
)

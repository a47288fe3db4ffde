package integration

import "errors"

// Setup outcomes as errors, for callers that only need errors.Is.
var (
	// ErrReauthRequired means the vendor rejected the credentials (401/403).
	// Retrying will not help until the account is re-authorized.
	ErrReauthRequired = errors.New("re-authorization required")

	// ErrSetupFailed means the vendor route does not exist (404). This is a
	// configuration problem and is not retried.
	ErrSetupFailed = errors.New("setup failed")

	// ErrNotReady means setup failed for a reason that may clear on retry.
	ErrNotReady = errors.New("not ready")
)

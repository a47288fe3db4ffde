package coordinator

import "errors"

// Domain-specific errors for the coordinator.
var (
	// ErrRefreshFailed wraps the cause of a failed refresh cycle. The cause
	// stays reachable through errors.Is / errors.As.
	ErrRefreshFailed = errors.New("refresh failed")

	// ErrAlreadyStarted is returned by Start when the loop is running.
	ErrAlreadyStarted = errors.New("coordinator already started")

	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("coordinator stopped")
)

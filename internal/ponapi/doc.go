// Package ponapi is the HTTP client for the PON connected-bike data API.
//
// Only two read-only routes are used: PathBikesInfo (the bikes linked to the
// account) and PathLastKnownStates (latest telemetry per bike). Responses are
// returned as decoded JSON without schema validation; package bike does the
// tolerant conversion.
//
// Every failure surfaces as exactly one of three kinds:
//
//	auth.ErrAuthUnavailable  no token, request not sent
//	*APIError                vendor answered with status >= 400
//	ErrTransport             no usable response
package ponapi

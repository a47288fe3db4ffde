// Package api implements the local HTTP read API and WebSocket push.
//
// This package provides:
//   - Read-only REST endpoints over the coordinator's current snapshot
//   - The persisted bike registry
//   - POST /api/v1/refresh, which joins or starts a refresh cycle
//   - The refresh audit trail at /api/v1/audit
//   - A WebSocket feed that pushes snapshot.updated after every cycle
//   - The Prometheus /metrics endpoint
//
// # Security
//
// When security.jwt.secret is set, /api/v1 data routes require an HS256
// bearer token (see auth.IssueAPIToken). Tokens carry a scope: "read"
// for the GET routes, "refresh" for POST /refresh. WebSocket connections
// use single-use tickets so the token never appears in a URL. Without a
// secret the API is open and should only listen on localhost.
//
// # Graceful Degradation
//
// The API never calls the vendor on a read. Before the first successful
// cycle the bike routes answer 503; after a failed cycle they keep serving
// the last good snapshot.
package api

// Package bike holds the bike and telemetry data model and the pure
// projections presentation layers derive from it.
//
// Vendor payloads are decoded into generic JSON values first and converted
// here with a tolerant parse: missing or extra fields never fail, wrong
// types fall back to documented defaults. The one contract enforced is the
// both-or-neither rule for coordinates.
//
// Projection functions are stateless and cheap; callers re-run them on every
// read instead of caching derived values.
package bike

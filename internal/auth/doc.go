// Package auth provides the credentials used by the bridge.
//
// Two unrelated kinds of token live here:
//   - Vendor access tokens: OAuthProvider wraps an oauth2.TokenSource and
//     refreshes the PON account token transparently. Callers only ever see a
//     currently valid access token or ErrAuthUnavailable.
//   - Local API tokens: short HS256 JWTs that guard the read API when
//     security.jwt.secret is configured.
//
// The interactive authorization-code flow that produces the initial refresh
// token happens outside this process.
package auth

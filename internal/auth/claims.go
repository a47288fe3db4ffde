package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// APIClaims are the claims carried by local read-API bearer tokens.
type APIClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// Scopes understood by the read API.
const (
	ScopeRead    = "read"
	ScopeRefresh = "refresh"
)

// IssueAPIToken creates a signed HS256 token for a local API client.
// A zero ttl defaults to 24 hours.
func IssueAPIToken(subject, scope, secret, issuer string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	now := time.Now()
	claims := APIClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scope: scope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing api token: %w", err)
	}
	return signed, nil
}

// ParseAPIToken validates signature, expiry and issuer (when non-empty) and
// returns the claims.
func ParseAPIToken(tokenString, secret, issuer string) (*APIClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &APIClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*APIClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}

// Allows reports whether the token grants scope. A refresh-scoped token
// may also read.
func (c *APIClaims) Allows(scope string) bool {
	switch c.Scope {
	case ScopeRefresh:
		return scope == ScopeRead || scope == ScopeRefresh
	case ScopeRead:
		return scope == ScopeRead
	default:
		return false
	}
}

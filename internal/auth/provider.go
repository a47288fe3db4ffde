package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/nerrad567/ponbike-core/internal/infrastructure/config"
)

// TokenProvider supplies a currently valid vendor access token.
// Implementations must be safe for concurrent use.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// OAuthProvider hands out vendor access tokens from an oauth2.TokenSource,
// refreshing them against the token endpoint when a refresh token is
// configured.
type OAuthProvider struct {
	source oauth2.TokenSource
}

// NewOAuthProvider builds a provider from the oauth section of the config.
//
// With a refresh token the access token is refreshed transparently when it
// expires (or immediately, if no access token was configured). With only an
// access token the provider serves it as-is until the vendor rejects it.
func NewOAuthProvider(cfg config.OAuthConfig, timeout time.Duration) (*OAuthProvider, error) {
	if cfg.AccessToken == "" && cfg.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no access or refresh token configured", ErrAuthUnavailable)
	}

	if cfg.RefreshToken == "" {
		return &OAuthProvider{
			source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: cfg.AccessToken,
				TokenType:   "Bearer",
			}),
		}, nil
	}

	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthorizeURL,
			TokenURL: cfg.TokenURL,
		},
		Scopes: cfg.Scopes,
	}

	initial := &oauth2.Token{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		TokenType:    "Bearer",
	}
	if cfg.AccessToken == "" {
		// Force a refresh on first use.
		initial.Expiry = time.Unix(1, 0)
	}

	// The token source keeps this context for every refresh request.
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &audienceTransport{audience: cfg.Audience, base: http.DefaultTransport},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return &OAuthProvider{
		source: oauth2.ReuseTokenSource(initial, oc.TokenSource(ctx, initial)),
	}, nil
}

// NewStaticProvider returns a provider that always serves token.
func NewStaticProvider(token string) *OAuthProvider {
	return &OAuthProvider{
		source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
	}
}

// Token returns a valid access token or an error wrapping ErrAuthUnavailable.
func (p *OAuthProvider) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
	}

	tok, err := p.source.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", fmt.Errorf("%w: token endpoint returned %d: %w", ErrAuthUnavailable, re.Response.StatusCode, err)
		}
		return "", fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuthUnavailable)
	}
	return tok.AccessToken, nil
}

// audienceTransport adds the audience parameter to token requests;
// oauth2.Config has no field for it.
type audienceTransport struct {
	audience string
	base     http.RoundTripper
}

func (t *audienceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.audience == "" || req.Method != http.MethodPost || req.Body == nil {
		return t.base.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close() //nolint:errcheck // body fully read
	if err != nil {
		return nil, fmt.Errorf("reading token request body: %w", err)
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing token request body: %w", err)
	}
	if form.Get("audience") == "" {
		form.Set("audience", t.audience)
	}
	encoded := []byte(form.Encode())

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(encoded))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(encoded)), nil
	}
	out.ContentLength = int64(len(encoded))
	return t.base.RoundTrip(out)
}

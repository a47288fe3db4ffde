package ponapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/ponbike-core/internal/auth"
)

// Fixed vendor routes, relative to the base URL.
const (
	PathBikesInfo       = "/v1/bikes/info"
	PathLastKnownStates = "/v1/bikes/last-known-states"
)

// DefaultBaseURL is the production data API.
const DefaultBaseURL = "https://data-act.connected.pon.bike/api"

const (
	defaultTimeout = 30 * time.Second

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 8 << 20
)

var knownPaths = map[string]bool{
	PathBikesInfo:       true,
	PathLastKnownStates: true,
}

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Observer receives one call per request. status is 0 when no response was
// received.
type Observer interface {
	ObserveRequest(path string, status int, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Tokens     auth.TokenProvider
	HTTPClient *http.Client
	Logger     Logger
	Observer   Observer
}

// Client issues authorised requests against the PON connected-bike API.
//
// It holds no mutable state beyond its collaborators and is safe for
// concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.TokenProvider
	logger     Logger
	observer   Observer
}

// New creates a Client. Tokens is required.
func New(opts Options) (*Client, error) {
	if opts.Tokens == nil {
		return nil, errors.New("ponapi: token provider is required")
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     opts.Tokens,
		logger:     logger,
		observer:   opts.Observer,
	}, nil
}

// Fetch performs one request and returns the decoded JSON body as-is
// ([]any, map[string]any, ...). An empty 2xx body decodes to nil.
//
// Headers are applied after the defaults, so callers may override Accept.
//
// Errors:
//   - wraps auth.ErrAuthUnavailable when no token could be obtained; nothing is sent
//   - *APIError for status >= 400
//   - wraps ErrTransport for everything else
func (c *Client) Fetch(ctx context.Context, method, path string, headers http.Header) (any, error) {
	if !knownPaths[path] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	if method == "" {
		method = http.MethodGet
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrAuthUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", auth.ErrAuthUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "*/*")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, vs := range headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	authPresent := req.Header.Get("Authorization") != ""

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(path, 0, start)
		c.logger.Debug("vendor request failed",
			"method", method,
			"path", path,
			"auth_header_present", authPresent,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.observe(path, resp.StatusCode, start)
	c.logger.Debug("vendor request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"auth_header_present", authPresent,
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       excerpt(string(body), maxBodyExcerpt),
		}
	}
	if readErr != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrTransport, path, readErr)
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	decoded, err := decodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrTransport, path, err)
	}
	return decoded, nil
}

// decodeJSON decodes a single JSON value, keeping numbers as json.Number so
// large integer ids survive exactly.
func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

// BikesInfo fetches the device list.
func (c *Client) BikesInfo(ctx context.Context) (any, error) {
	return c.Fetch(ctx, http.MethodGet, PathBikesInfo, nil)
}

// LastKnownStates fetches the per-bike telemetry list.
func (c *Client) LastKnownStates(ctx context.Context) (any, error) {
	return c.Fetch(ctx, http.MethodGet, PathLastKnownStates, nil)
}

func (c *Client) observe(path string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(path, status, time.Since(start))
	}
}

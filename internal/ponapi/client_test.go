package ponapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ponbike-core/internal/auth"
)

type mockTokens struct {
	token string
	err   error
}

func (m *mockTokens) Token(context.Context) (string, error) {
	return m.token, m.err
}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
	args [][]any
}

func (l *recordingLogger) Debug(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
	l.args = append(l.args, args)
}

func (l *recordingLogger) field(i int, key string) any {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.args[i]
	for j := 0; j+1 < len(a); j += 2 {
		if a[j] == key {
			return a[j+1]
		}
	}
	return nil
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []int
}

func (o *recordingObserver) ObserveRequest(_ string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens auth.TokenProvider) (*Client, *recordingLogger) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := &recordingLogger{}
	c, err := New(Options{
		BaseURL: srv.URL + "/api/",
		Tokens:  tokens,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, logger
}

func TestFetch_Success(t *testing.T) {
	c, logger := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api"+PathBikesInfo {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "*/*" {
			t.Errorf("Accept = %q, want */*", got)
		}
		_, _ = w.Write([]byte(`[{"bikeId":"A1"}]`))
	}, &mockTokens{token: "secret-token"})

	got, err := c.BikesInfo(context.Background())
	if err != nil {
		t.Fatalf("BikesInfo() error = %v", err)
	}

	list, ok := got.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("BikesInfo() = %#v, want one-element list", got)
	}
	if list[0].(map[string]any)["bikeId"] != "A1" {
		t.Errorf("item = %#v", list[0])
	}

	if len(logger.msgs) != 1 {
		t.Fatalf("log lines = %d, want 1", len(logger.msgs))
	}
	if logger.field(0, "auth_header_present") != true {
		t.Error("log should record auth_header_present=true")
	}
	if logger.field(0, "status") != http.StatusOK {
		t.Errorf("log status = %v", logger.field(0, "status"))
	}
	for _, a := range logger.args[0] {
		if s, ok := a.(string); ok && strings.Contains(s, "secret-token") {
			t.Error("log must never contain the token")
		}
	}
}

func TestFetch_ReturnsBodyAsIs(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":"object"}`))
	}, &mockTokens{token: "t"})

	got, err := c.LastKnownStates(context.Background())
	if err != nil {
		t.Fatalf("LastKnownStates() error = %v", err)
	}
	if _, ok := got.(map[string]any); !ok {
		t.Errorf("LastKnownStates() = %#v, want the object untouched", got)
	}
}

func TestFetch_KeepsNumbersExact(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"bikeId":9007199254740993,"odometer":123.4}]`))
	}, &mockTokens{token: "t"})

	got, err := c.BikesInfo(context.Background())
	if err != nil {
		t.Fatalf("BikesInfo() error = %v", err)
	}
	item := got.([]any)[0].(map[string]any)

	id, ok := item["bikeId"].(json.Number)
	if !ok || id.String() != "9007199254740993" {
		t.Errorf("bikeId = %#v, want json.Number 9007199254740993", item["bikeId"])
	}
	if odo, ok := item["odometer"].(json.Number); !ok || odo.String() != "123.4" {
		t.Errorf("odometer = %#v, want json.Number 123.4", item["odometer"])
	}
}

func TestFetch_TrailingData(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[] []`))
	}, &mockTokens{token: "t"})

	_, err := c.BikesInfo(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}

func TestFetch_HeaderOverride(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want override", got)
		}
		_, _ = w.Write([]byte(`[]`))
	}, &mockTokens{token: "t"})

	h := http.Header{}
	h.Set("Accept", "application/json")
	if _, err := c.Fetch(context.Background(), http.MethodGet, PathBikesInfo, h); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
}

func TestFetch_APIError(t *testing.T) {
	longBody := strings.Repeat("é", 800)

	tests := []struct {
		name     string
		status   int
		body     string
		wantBody string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"expired"}`, `{"error":"expired"}`},
		{"not found", http.StatusNotFound, "", ""},
		{"server error truncated", http.StatusBadGateway, longBody, strings.Repeat("é", 500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, &mockTokens{token: "t"})

			_, err := c.Fetch(context.Background(), http.MethodGet, PathLastKnownStates, nil)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Fetch() error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Path != PathLastKnownStates {
				t.Errorf("Path = %q", apiErr.Path)
			}
			if apiErr.Body != tt.wantBody {
				t.Errorf("Body length = %d runes, want %d", len([]rune(apiErr.Body)), len([]rune(tt.wantBody)))
			}
			if errors.Is(err, ErrTransport) {
				t.Error("APIError must not also be a transport error")
			}
			if code, ok := StatusCode(fmt.Errorf("wrapped: %w", err)); !ok || code != tt.status {
				t.Errorf("StatusCode() = (%d, %v)", code, ok)
			}
		})
	}
}

func TestFetch_TransportErrors(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()

		obs := &recordingObserver{}
		c, err := New(Options{BaseURL: url, Tokens: &mockTokens{token: "t"}, Observer: obs})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		_, err = c.BikesInfo(context.Background())
		if !errors.Is(err, ErrTransport) {
			t.Errorf("BikesInfo() error = %v, want ErrTransport", err)
		}
		if len(obs.statuses) != 1 || obs.statuses[0] != 0 {
			t.Errorf("observed statuses = %v, want [0]", obs.statuses)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"bikeId":`))
		}, &mockTokens{token: "t"})

		_, err := c.BikesInfo(context.Background())
		if !errors.Is(err, ErrTransport) {
			t.Errorf("BikesInfo() error = %v, want ErrTransport", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			<-release
		}))
		t.Cleanup(srv.Close)
		t.Cleanup(func() { close(release) })

		c, err := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, Tokens: &mockTokens{token: "t"}})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		_, err = c.BikesInfo(context.Background())
		if !errors.Is(err, ErrTransport) {
			t.Errorf("BikesInfo() error = %v, want ErrTransport", err)
		}
	})
}

func TestFetch_AuthUnavailable(t *testing.T) {
	called := false
	c, _ := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		called = true
	}, &mockTokens{err: errors.New("refresh token revoked")})

	_, err := c.BikesInfo(context.Background())
	if !errors.Is(err, auth.ErrAuthUnavailable) {
		t.Errorf("BikesInfo() error = %v, want ErrAuthUnavailable", err)
	}
	if called {
		t.Error("no request may be sent without a token")
	}
}

func TestFetch_UnknownPath(t *testing.T) {
	c, _ := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("unexpected request")
	}, &mockTokens{token: "t"})

	_, err := c.Fetch(context.Background(), http.MethodGet, "/v1/users", nil)
	if !errors.Is(err, ErrUnknownPath) {
		t.Errorf("Fetch() error = %v, want ErrUnknownPath", err)
	}
}

func TestNew_RequiresTokens(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without token provider should fail")
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := excerpt(tt.in, tt.n); got != tt.want {
			t.Errorf("excerpt(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/othaime-en/validapi/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimer fires immediately and records every requested wait
type fakeTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func (f *fakeTimer) Start(d time.Duration) {
	f.waits = append(f.waits, d)
	f.c = make(chan time.Time, 1)
	f.c <- time.Now()
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time {
	return f.c
}

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     chi.URLParam(r, "id"),
			"query":  r.URL.Query(),
			"accept": r.Header.Get("Accept"),
			"agent":  r.Header.Get("User-Agent"),
			"token":  r.Header.Get("X-Token"),
		})
	})
	r.Post("/users", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})
	r.Get("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	r.Get("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/users/1", http.StatusFound)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://api", "/users", "http://api/users"},
		{"http://api/", "/users", "http://api/users"},
		{"http://api/", "users", "http://api/users"},
		{"http://api", "users", "http://api/users"},
		{"http://api/v1//", "//users", "http://api/v1/users"},
		{"http://api", "", "http://api"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinURL(tt.base, tt.path), "%s + %s", tt.base, tt.path)
	}
}

func TestDoMergesHeadersAndParams(t *testing.T) {
	srv := newEchoServer(t)
	cfg := config.Default()
	cfg.HTTP.Headers = map[string]string{"Accept": "application/json", "User-Agent": "validapi/1.0"}

	g := New(srv.URL+"/", cfg)
	resp, err := g.Do(context.Background(), Call{
		Method:  "get",
		Path:    "/users/42",
		Params:  map[string]any{"tag": []any{"a", "b"}, "limit": 10},
		Headers: map[string]string{"User-Agent": "custom", "X-Token": "secret"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", resp.Reason)
	assert.Equal(t, 1, resp.Attempts)
	assert.Contains(t, resp.ContentType(), "application/json")

	var got struct {
		ID     string              `json:"id"`
		Query  map[string][]string `json:"query"`
		Accept string              `json:"accept"`
		Agent  string              `json:"agent"`
		Token  string              `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &got))
	assert.Equal(t, "42", got.ID)
	assert.Equal(t, []string{"a", "b"}, got.Query["tag"])
	assert.Equal(t, []string{"10"}, got.Query["limit"])
	assert.Equal(t, "application/json", got.Accept)
	assert.Equal(t, "custom", got.Agent)
	assert.Equal(t, "secret", got.Token)

	assert.Equal(t, "GET", resp.Request.Method)
	assert.Equal(t, srv.URL+"/users/42?limit=10&tag=a&tag=b", resp.Request.URL)
}

func TestDoSendsJSONBody(t *testing.T) {
	srv := newEchoServer(t)
	g := New(srv.URL, config.Default())

	resp, err := g.Do(context.Background(), Call{
		Method: "POST",
		Path:   "/users",
		JSON:   map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"name":"Ada"}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Request.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"name":"Ada"}`, string(resp.Request.Body))
}

func TestDoDoesNotRetryServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	timer := &fakeTimer{}
	g := New(srv.URL, config.Default(), WithTimer(timer))

	resp, err := g.Do(context.Background(), Call{Method: "GET", Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, timer.waits)
}

func TestDoRetriesTransportFailures(t *testing.T) {
	// Closed server: every dial is refused
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	cfg := config.Default()
	cfg.Validation.MaxRetries = 3
	timer := &fakeTimer{}
	g := New(base, cfg, WithTimer(timer))

	resp, err := g.Do(context.Background(), Call{Method: "GET", Path: "/users"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrTransport)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, 4, transportErr.Attempts)
	assert.Equal(t, base+"/users", transportErr.URL)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, timer.waits)
}

func TestDoBackoffUnit(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	cfg := config.Default()
	cfg.Validation.MaxRetries = 2
	timer := &fakeTimer{}
	g := New(base, cfg, WithTimer(timer), WithBackoffUnit(10*time.Millisecond))

	_, err := g.Do(context.Background(), Call{Method: "GET", Path: "/"})
	require.Error(t, err)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, timer.waits)
}

func TestDoNoRetries(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	cfg := config.Default()
	cfg.Validation.MaxRetries = 0
	timer := &fakeTimer{}
	g := New(base, cfg, WithTimer(timer))

	_, err := g.Do(context.Background(), Call{Method: "GET", Path: "/"})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 1, transportErr.Attempts)
	assert.Empty(t, timer.waits)
}

func TestDoRedirectPolicy(t *testing.T) {
	srv := newEchoServer(t)

	follow := New(srv.URL, config.Default())
	resp, err := follow.Do(context.Background(), Call{Method: "GET", Path: "/moved"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cfg := config.Default()
	cfg.HTTP.FollowRedirects = false
	stay := New(srv.URL, cfg)
	resp, err = stay.Do(context.Background(), Call{Method: "GET", Path: "/moved"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestDoTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Validation.Timeout = 50 * time.Millisecond
	cfg.Validation.MaxRetries = 1
	g := New(srv.URL, cfg, WithTimer(&fakeTimer{}))

	_, err := g.Do(context.Background(), Call{Method: "GET", Path: "/slow"})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 2, transportErr.Attempts)
}

func TestDoCanceledContext(t *testing.T) {
	srv := newEchoServer(t)
	g := New(srv.URL, config.Default(), WithTimer(&fakeTimer{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Do(ctx, Call{Method: "GET", Path: "/users/1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequestDefaultsToGet(t *testing.T) {
	g := New("http://api.test", config.Default())
	req, body, err := g.NewRequest(context.Background(), Call{Path: "ping"})
	require.NoError(t, err)
	assert.Nil(t, body)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "http://api.test/ping", req.URL.String())
	assert.Equal(t, "validapi/1.0", req.Header.Get("User-Agent"))
}

func TestExpandPath(t *testing.T) {
	assert.Equal(t, "/orders/42/items/{item}", ExpandPath("/orders/{id}/items/{item}", map[string]any{"id": 42}))
	assert.Equal(t, "/a/x/b/x", ExpandPath("/a/{v}/b/{v}", map[string]any{"v": "x"}))
	assert.Equal(t, "/plain", ExpandPath("/plain", nil))

	// Substituted values are never expanded again
	params := map[string]any{"a": "{b}", "b": "{a}", "c": "x"}
	for range 20 {
		assert.Equal(t, "/{b}/{a}/x", ExpandPath("/{a}/{b}/{c}", params))
	}
	assert.Equal(t, "/open{", ExpandPath("/open{", map[string]any{"x": 1}))
}

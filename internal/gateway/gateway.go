// Package gateway executes HTTP calls against the API under test with
// timeouts and bounded retry on transport failure.
package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/othaime-en/validapi/internal/config"
	"github.com/spf13/cast"
)

// Call describes one request relative to the gateway's base URL
type Call struct {
	Method  string
	Path    string
	Params  map[string]any
	JSON    any
	Headers map[string]string
}

// SentRequest records what was put on the wire
type SentRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Reason     string
	Header     http.Header
	Body       []byte
	Request    SentRequest
	Attempts   int
}

// ContentType returns the response Content-Type header
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Gateway owns one HTTP client and its connection pool
type Gateway struct {
	baseURL    string
	client     *http.Client
	headers    map[string]string
	maxRetries int
	unit       time.Duration
	timer      backoff.Timer
	logger     *slog.Logger
}

// Option configures a Gateway
type Option func(*Gateway)

// WithLogger sets the logger used for retry diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithBackoffUnit sets the base backoff interval. Attempt k waits unit*2^k.
func WithBackoffUnit(unit time.Duration) Option {
	return func(g *Gateway) {
		if unit > 0 {
			g.unit = unit
		}
	}
}

// WithTimer replaces the timer used to wait between attempts
func WithTimer(timer backoff.Timer) Option {
	return func(g *Gateway) {
		g.timer = timer
	}
}

// WithHTTPClient replaces the HTTP client built from configuration
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// New creates a gateway for baseURL using the HTTP and validation settings of cfg
func New(baseURL string, cfg config.Config, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:    baseURL,
		client:     NewClient(cfg),
		headers:    cfg.HTTP.Headers,
		maxRetries: cfg.Validation.MaxRetries,
		unit:       time.Second,
		logger:     slog.New(slog.DiscardHandler),
	}
	if g.maxRetries < 0 {
		g.maxRetries = 0
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewClient builds an http.Client from configuration
func NewClient(cfg config.Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.HTTP.ConnectionTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.ResponseHeaderTimeout = cfg.HTTP.ReadTimeout
	if !cfg.HTTP.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via http.verify_ssl
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Validation.Timeout,
	}
	if !cfg.HTTP.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

// BaseURL returns the URL every call path is joined to
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// URL joins the base URL and path with exactly one slash
func (g *Gateway) URL(path string) string {
	return JoinURL(g.baseURL, path)
}

// JoinURL joins base and path with exactly one slash between them
func JoinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// ExpandPath replaces {name} tokens in a path template with the supplied
// values. Tokens without a value are left as they are.
func ExpandPath(path string, params map[string]any) string {
	if len(params) == 0 {
		return path
	}

	var b strings.Builder
	rest := path
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}
		end += open

		b.WriteString(rest[:open])
		if value, ok := params[rest[open+1:end]]; ok {
			b.WriteString(cast.ToString(value))
		} else {
			b.WriteString(rest[open : end+1])
		}
		rest = rest[end+1:]
	}
	b.WriteString(rest)
	return b.String()
}

// NewRequest builds the HTTP request for call. Configured default headers are
// applied first, then the call's own headers.
func (g *Gateway) NewRequest(ctx context.Context, call Call) (*http.Request, []byte, error) {
	target := g.URL(call.Path)
	if query := encodeParams(call.Params); query != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query
	}

	var body []byte
	if call.JSON != nil {
		b, err := json.Marshal(call.JSON)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = b
	}

	method := strings.ToUpper(call.Method)
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range g.headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}

	return req, body, nil
}

// Do executes call, retrying transport failures with exponential backoff.
// A received response is returned as-is whatever its status.
func (g *Gateway) Do(ctx context.Context, call Call) (*Response, error) {
	attempts := 0
	var lastURL string

	operation := func() (*Response, error) {
		attempts++
		req, body, err := g.NewRequest(ctx, call)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		lastURL = req.URL.String()

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		return &Response{
			StatusCode: resp.StatusCode,
			Reason:     reason(resp),
			Header:     resp.Header,
			Body:       respBody,
			Request: SentRequest{
				Method: req.Method,
				URL:    lastURL,
				Header: req.Header,
				Body:   body,
			},
		}, nil
	}

	notify := func(err error, wait time.Duration) {
		g.logger.Warn("request failed, retrying",
			"method", strings.ToUpper(call.Method),
			"path", call.Path,
			"attempt", attempts,
			"backoff", wait,
			"error", err)
	}

	resp, err := backoff.RetryNotifyWithTimerAndData(operation, g.policy(ctx), notify, g.timer)
	if err != nil {
		if lastURL == "" {
			lastURL = g.URL(call.Path)
		}
		return nil, &TransportError{
			Method:   strings.ToUpper(call.Method),
			URL:      lastURL,
			Attempts: attempts,
			Cause:    err,
		}
	}
	resp.Attempts = attempts
	return resp, nil
}

// policy waits unit*2^k before retry k, for at most maxRetries retries
func (g *Gateway) policy(ctx context.Context) backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     g.unit,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Duration(math.MaxInt64),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.maxRetries)), ctx)
}

// reason returns the reason phrase sent by the server, falling back to the
// standard text for the code
func reason(resp *http.Response) string {
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode))); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func encodeParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		switch v := params[k].(type) {
		case nil:
			continue
		case []any:
			for _, item := range v {
				values.Add(k, cast.ToString(item))
			}
		case []string:
			for _, item := range v {
				values.Add(k, item)
			}
		default:
			values.Add(k, cast.ToString(v))
		}
	}
	return values.Encode()
}

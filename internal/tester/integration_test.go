package tester

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/othaime-en/validapi/internal/config"
	"github.com/othaime-en/validapi/internal/gateway"
	"github.com/othaime-en/validapi/internal/models"
	"github.com/othaime-en/validapi/internal/parser"
	"github.com/othaime-en/validapi/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shopServer implements the shop spec, with one deliberately broken user
type shopServer struct {
	*httptest.Server

	mu   sync.Mutex
	hits []string
}

func newShopServer(t *testing.T) *shopServer {
	t.Helper()
	s := &shopServer{}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			s.hits = append(s.hits, r.Method+" "+r.URL.Path)
			s.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "name": "Ada", "email": nil}})
	})
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "id") {
		case "1":
			writeJSON(w, http.StatusOK, map[string]any{"id": 1, "name": "Ada"})
		case "2":
			writeJSON(w, http.StatusOK, map[string]any{"id": 2, "name": 123})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		}
	})
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(chi.URLParam(r, "id"))
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "total": 9.5})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *shopServer) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hits...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func loadShop(t *testing.T) *parser.Parser {
	t.Helper()
	p, err := parser.ParseFile(filepath.Join("testdata", "shop.yaml"))
	require.NoError(t, err)
	return p
}

func newTester(t *testing.T, baseURL string, cfg config.Config) *Tester {
	t.Helper()
	return NewTester(loadShop(t), gateway.New(baseURL, cfg), cfg, nil)
}

func shopData() models.TestData {
	return models.TestData{
		"/users/{id}":  {"get": {PathParams: map[string]any{"id": 1}}},
		"/orders/{id}": {"get": {PathParams: map[string]any{"id": 42}}},
	}
}

func TestValidateEndpointNotFound(t *testing.T) {
	srv := newShopServer(t)
	tr := newTester(t, srv.URL, config.Default())

	result, err := tr.ValidateEndpoint(context.Background(), "/nope", "get", nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, MsgEndpointNotFound, result.Error)
	assert.Equal(t, time.Duration(0), result.ResponseTime)
	assert.Empty(t, result.Validations)
	assert.Empty(t, srv.requests())
	assert.Len(t, tr.Results(), 1)
}

func TestValidateEndpointPathParams(t *testing.T) {
	srv := newShopServer(t)
	tr := newTester(t, srv.URL, config.Default())

	tc := &models.TestCase{PathParams: map[string]any{"id": 42}}
	result, err := tr.ValidateEndpoint(context.Background(), "/orders/{id}", "GET", tc)
	require.NoError(t, err)

	assert.True(t, result.Success, "validations: %+v", result.Validations)
	assert.Equal(t, []string{"GET /orders/42"}, srv.requests())
	assert.Equal(t, "getOrder", result.OperationID)
	require.NotNil(t, result.Request)
	assert.Equal(t, srv.URL+"/orders/42", result.Request.URL)
	assert.Contains(t, result.Validations, validator.NameSchema)
}

func TestValidateEndpointSchemaFailure(t *testing.T) {
	srv := newShopServer(t)
	tr := newTester(t, srv.URL, config.Default())

	tc := &models.TestCase{PathParams: map[string]any{"id": "2"}}
	result, err := tr.ValidateEndpoint(context.Background(), "/users/{id}", "get", tc)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.True(t, result.Validations[validator.NameStatusCode].Valid)
	assert.True(t, result.Validations[validator.NameHeaders].Valid)

	schema := result.Validations[validator.NameSchema]
	require.False(t, schema.Valid)
	require.Len(t, schema.Errors, 1)
	assert.Equal(t, []any{"name"}, schema.Errors[0].Details["path"])
}

func TestValidateEndpointSkipsSchemaForNon2xx(t *testing.T) {
	srv := newShopServer(t)
	tr := newTester(t, srv.URL, config.Default())

	tc := &models.TestCase{PathParams: map[string]any{"id": 99}}
	result, err := tr.ValidateEndpoint(context.Background(), "/users/{id}", "GET", tc)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.True(t, result.Success)
	assert.NotContains(t, result.Validations, validator.NameSchema)
	assert.Contains(t, result.Validations, validator.NameStatusCode)
	assert.Contains(t, result.Validations, validator.NameHeaders)
}

func TestValidateEndpointNotJSON(t *testing.T) {
	srv := newShopServer(t)
	tr := newTester(t, srv.URL, config.Default())

	result, err := tr.ValidateEndpoint(context.Background(), "/health", "GET", nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	schema := result.Validations[validator.NameSchema]
	require.Len(t, schema.Errors, 1)
	assert.Equal(t, "Response is not JSON", schema.Errors[0].Message)

	require.NotNil(t, result.Response)
	require.NotNil(t, result.Response.Body)
	assert.Equal(t, "ok", *result.Response.Body)
	assert.Equal(t, 2, result.Response.Size)
}

func TestValidateEndpointTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	cfg := config.Default()
	cfg.Validation.MaxRetries = 0
	tr := newTester(t, base, cfg)

	result, err := tr.ValidateEndpoint(context.Background(), "/users", "GET", nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "failed after 1 attempt")
	assert.Empty(t, result.Validations)
	assert.Nil(t, result.Request)
	assert.Nil(t, result.Response)
	assert.Zero(t, result.StatusCode)
}

func TestValidateEndpointReportingOptions(t *testing.T) {
	srv := newShopServer(t)
	cfg := config.Default()
	cfg.Reporting.IncludeRequestDetails = false
	cfg.Reporting.MaxResponseBodySize = 5
	tr := newTester(t, srv.URL, cfg)

	result, err := tr.ValidateEndpoint(context.Background(), "/users", "GET", nil)
	require.NoError(t, err)

	assert.Nil(t, result.Request)
	require.NotNil(t, result.Response)
	assert.Nil(t, result.Response.Body)
	assert.Greater(t, result.Response.Size, 5)
	assert.Equal(t, "application/json", result.Response.Headers["Content-Type"])
}

func TestValidateEndpointDanglingReference(t *testing.T) {
	srv := newShopServer(t)
	doc := []byte(`{
  "openapi": "3.0.0",
  "info": {"title": "t", "version": "1"},
  "paths": {"/users": {"get": {"responses": {"200": {"description": "x",
    "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Gone"}}}}}}}}
}`)
	spec, err := parser.Parse(doc, parser.FormatJSON)
	require.NoError(t, err)

	cfg := config.Default()
	tr := NewTester(spec, gateway.New(srv.URL, cfg), cfg, nil)

	_, err = tr.ValidateEndpoint(context.Background(), "/users", "GET", nil)
	assert.ErrorIs(t, err, parser.ErrReference)
	assert.Empty(t, tr.Results())
}

func TestValidateAllEndpoints(t *testing.T) {
	srv := newShopServer(t)
	tr := newTester(t, srv.URL, config.Default())

	var events []EventType
	results, err := tr.ValidateAllEndpoints(context.Background(), shopData(), RunOptions{
		OnEvent: func(e TestEvent) {
			events = append(events, e.Type)
			assert.Equal(t, 4, e.Total)
		},
	})
	require.NoError(t, err)

	var got []string
	for _, r := range results {
		got = append(got, r.Method+" "+r.Path)
	}
	assert.Equal(t, []string{"GET /users", "GET /users/{id}", "GET /orders/{id}", "GET /health"}, got)
	assert.Equal(t, []bool{true, true, true, false}, []bool{
		results[0].Success, results[1].Success, results[2].Success, results[3].Success,
	})
	assert.Len(t, events, 8)
	assert.Equal(t, EventStarting, events[0])
	assert.Equal(t, EventCompleted, events[1])

	summary := tr.Summary()
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.InDelta(t, 75.0, summary.SuccessRate, 0.001)
	assert.Equal(t, results, tr.Results())
}

func TestValidateAllEndpointsStopOnFirstFailure(t *testing.T) {
	srv := newShopServer(t)
	tr := newTester(t, srv.URL, config.Default())

	data := shopData()
	data["/users/{id}"]["get"] = models.TestCase{PathParams: map[string]any{"id": 2}}

	results, err := tr.ValidateAllEndpoints(context.Background(), data, RunOptions{StopOnFirstFailure: true})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.False(t, results[1].Success)
	assert.Len(t, srv.requests(), 2)
}

func TestValidateAllEndpointsInclude(t *testing.T) {
	srv := newShopServer(t)
	tr := newTester(t, srv.URL, config.Default())

	results, err := tr.ValidateAllEndpoints(context.Background(), shopData(), RunOptions{
		Include: func(e models.Endpoint) bool {
			for _, tag := range e.Tags {
				if tag == "orders" {
					return true
				}
			}
			return false
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/orders/{id}", results[0].Path)
}

func TestValidateAllEndpointsDelay(t *testing.T) {
	srv := newShopServer(t)
	tr := newTester(t, srv.URL, config.Default())

	start := time.Now()
	results, err := tr.ValidateAllEndpoints(context.Background(), shopData(), RunOptions{Delay: 30 * time.Millisecond})
	require.NoError(t, err)

	assert.Len(t, results, 4)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestSummaryEmpty(t *testing.T) {
	srv := newShopServer(t)
	tr := newTester(t, srv.URL, config.Default())

	assert.Equal(t, models.RunSummary{}, tr.Summary())
	assert.Empty(t, tr.Results())
}

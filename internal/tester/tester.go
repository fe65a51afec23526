package tester

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/othaime-en/validapi/internal/config"
	"github.com/othaime-en/validapi/internal/gateway"
	"github.com/othaime-en/validapi/internal/models"
	"github.com/othaime-en/validapi/internal/parser"
	"github.com/othaime-en/validapi/internal/validator"
	"golang.org/x/time/rate"
)

// EventType represents the type of validation event
type EventType int

const (
	// EventStarting indicates an endpoint is about to be validated
	EventStarting EventType = iota
	// EventCompleted indicates an endpoint has been validated
	EventCompleted
)

// TestEvent represents an event during a run
type TestEvent struct {
	Type     EventType
	Endpoint models.Endpoint
	Result   *models.EndpointResult // nil for Starting events
	Index    int                    // current endpoint index (0-based)
	Total    int                    // total number of endpoints
}

// OnTestEvent is a callback function for test events
type OnTestEvent func(event TestEvent)

// RunOptions control a ValidateAllEndpoints run
type RunOptions struct {
	// Delay is the minimum spacing between request starts
	Delay time.Duration
	// StopOnFirstFailure halts the run after the first failed endpoint
	StopOnFirstFailure bool
	// Include selects endpoints; nil selects all
	Include func(models.Endpoint) bool
	// OnEvent receives live progress events
	OnEvent OnTestEvent
}

// Messages used in failed results
const (
	MsgEndpointNotFound = "Endpoint not found in specification"
	binaryBody          = "<Binary data>"
	undecodableBody     = "<Unable to decode response body>"
)

// Tester validates live endpoints against a parsed specification. It keeps
// every result it produces until the Tester is discarded.
type Tester struct {
	spec       *parser.Parser
	gateway    *gateway.Gateway
	validators []validator.Validator
	reporting  config.ReportingConfig
	logger     *slog.Logger

	results []models.EndpointResult
}

// NewTester creates a tester bound to one spec and one gateway
func NewTester(spec *parser.Parser, gw *gateway.Gateway, cfg config.Config, logger *slog.Logger) *Tester {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tester{
		spec:       spec,
		gateway:    gw,
		validators: validator.Defaults(cfg.Validation.StrictMode, cfg.Validation.NullableFields),
		reporting:  cfg.Reporting,
		logger:     logger,
	}
}

// ValidateEndpoint validates a single operation and records its result.
// The error is non-nil only for a dangling reference in the specification.
func (t *Tester) ValidateEndpoint(ctx context.Context, path, method string, tc *models.TestCase) (models.EndpointResult, error) {
	result, err := t.validateEndpoint(ctx, path, method, tc)
	if err != nil {
		return result, err
	}
	t.results = append(t.results, result)
	return result, nil
}

func (t *Tester) validateEndpoint(ctx context.Context, path, method string, tc *models.TestCase) (models.EndpointResult, error) {
	method = strings.ToUpper(method)
	result := models.EndpointResult{
		Path:        path,
		Method:      method,
		Validations: map[string]models.ValidationResult{},
	}

	endpoint, ok := t.spec.GetEndpoint(path, method)
	if !ok {
		result.Error = MsgEndpointNotFound
		return result, nil
	}
	result.OperationID = endpoint.OperationID
	result.Endpoint = &endpoint

	if tc == nil {
		tc = &models.TestCase{}
	}

	call := gateway.Call{
		Method:  method,
		Path:    gateway.ExpandPath(path, tc.PathParams),
		Params:  tc.Params,
		JSON:    tc.JSON,
		Headers: tc.Headers,
	}

	start := time.Now()
	resp, err := t.gateway.Do(ctx, call)
	result.ResponseTime = time.Since(start)

	if err != nil {
		result.Error = err.Error()
		t.logger.Info("endpoint request failed", "method", method, "path", path, "error", err)
		return result, nil
	}
	result.StatusCode = resp.StatusCode

	exp := validator.Expectations{
		StatusCodes: validator.StatusCodeParams{Codes: t.spec.GetExpectedStatusCodes(path, method)},
		Headers:     validator.HeaderParams{Expected: tc.ExpectedHeaders},
	}

	runSchema := false
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		schema, err := t.spec.GetResponseSchema(path, method, strconv.Itoa(resp.StatusCode))
		if err != nil {
			return result, fmt.Errorf("failed to resolve response schema for %s %s: %w", method, path, err)
		}
		if schema != nil {
			exp.Schema = validator.SchemaParams{Schema: schema, Root: t.spec.Root()}
			runSchema = true
		}
	}

	result.Success = true
	for _, v := range t.validators {
		if v.Name() == validator.NameSchema && !runSchema {
			continue
		}
		vr := v.Validate(resp, exp)
		result.Validations[v.Name()] = vr
		result.Success = result.Success && vr.Valid
	}

	if t.reporting.IncludeRequestDetails {
		result.Request = requestSnapshot(resp.Request)
	}
	result.Response = t.responseSnapshot(resp)

	t.logger.Debug("endpoint validated",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"success", result.Success,
		"duration", result.ResponseTime)

	return result, nil
}

// ValidateAllEndpoints validates every selected endpoint in declaration order
// and returns the results of this run
func (t *Tester) ValidateAllEndpoints(ctx context.Context, data models.TestData, opts RunOptions) ([]models.EndpointResult, error) {
	var endpoints []models.Endpoint
	for _, e := range t.spec.ListEndpoints() {
		if opts.Include == nil || opts.Include(e) {
			endpoints = append(endpoints, e)
		}
	}

	var limiter *rate.Limiter
	if opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}

	total := len(endpoints)
	results := make([]models.EndpointResult, 0, total)

	for i, e := range endpoints {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return results, err
			}
		}

		if opts.OnEvent != nil {
			opts.OnEvent(TestEvent{Type: EventStarting, Endpoint: e, Index: i, Total: total})
		}

		result, err := t.ValidateEndpoint(ctx, e.Path, e.Method, data.Lookup(e.Path, e.Method))
		if err != nil {
			return results, err
		}
		results = append(results, result)

		if opts.OnEvent != nil {
			opts.OnEvent(TestEvent{Type: EventCompleted, Endpoint: e, Result: &result, Index: i, Total: total})
		}

		if opts.StopOnFirstFailure && !result.Success {
			t.logger.Info("stopping after first failure", "method", e.Method, "path", e.Path)
			break
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
	}

	return results, nil
}

// Results returns every result recorded so far, in order
func (t *Tester) Results() []models.EndpointResult {
	return append([]models.EndpointResult(nil), t.results...)
}

// Summary aggregates the recorded results
func (t *Tester) Summary() models.RunSummary {
	return models.Summarize(t.results)
}

func requestSnapshot(req gateway.SentRequest) *models.RequestSnapshot {
	snap := &models.RequestSnapshot{
		Method:  req.Method,
		URL:     req.URL,
		Headers: flatten(req.Header),
	}
	if len(req.Body) > 0 {
		if utf8.Valid(req.Body) {
			snap.Body = string(req.Body)
		} else {
			snap.Body = binaryBody
		}
	}
	return snap
}

func (t *Tester) responseSnapshot(resp *gateway.Response) *models.ResponseSnapshot {
	snap := &models.ResponseSnapshot{
		StatusCode: resp.StatusCode,
		Reason:     resp.Reason,
		Headers:    flatten(resp.Header),
		Size:       len(resp.Body),
	}
	if t.reporting.IncludeResponseBody && snap.Size <= t.reporting.MaxResponseBodySize {
		body := undecodableBody
		if utf8.Valid(resp.Body) {
			body = string(resp.Body)
		}
		snap.Body = &body
	}
	return snap
}

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

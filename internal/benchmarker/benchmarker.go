// Package benchmarker measures endpoint latency and throughput with a pool of
// concurrent workers, reusing the request construction of the gateway.
package benchmarker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/othaime-en/validapi/internal/gateway"
	"github.com/othaime-en/validapi/internal/models"
	"github.com/othaime-en/validapi/internal/parser"
	"golang.org/x/time/rate"
)

// EventType represents the type of benchmark event
type EventType int

const (
	// EventWarmupStarting indicates warmup phase is starting for an endpoint
	EventWarmupStarting EventType = iota
	// EventWarmupProgress indicates warmup progress
	EventWarmupProgress
	// EventWarmupCompleted indicates warmup phase completed
	EventWarmupCompleted
	// EventBenchmarkStarting indicates benchmark is starting for an endpoint
	EventBenchmarkStarting
	// EventBenchmarkProgress indicates benchmark progress (periodic updates)
	EventBenchmarkProgress
	// EventBenchmarkCompleted indicates benchmark completed for an endpoint
	EventBenchmarkCompleted
)

// BenchmarkEvent represents an event during benchmark execution
type BenchmarkEvent struct {
	Type     EventType
	Endpoint models.Endpoint
	Result   *models.BenchmarkResult // nil until completed
	Index    int                     // current endpoint index (0-based)
	Total    int                     // total number of endpoints
	Progress int                     // current iteration count
	MaxIter  int                     // max iterations for this phase

	// Running stats (for progress events)
	RunningAvg    time.Duration
	RunningReqSec float64
	ErrorCount    int
}

// OnBenchmarkEvent is a callback function for benchmark events
type OnBenchmarkEvent func(event BenchmarkEvent)

// Config holds benchmark configuration
type Config struct {
	Iterations       int           // Number of requests per endpoint
	Concurrency      int           // Number of concurrent workers
	WarmupRuns       int           // Number of warmup iterations (discarded)
	RateLimit        float64       // Max requests per second (0 = unlimited)
	Timeout          time.Duration // Per-request timeout
	DisableKeepAlive bool          // Disable HTTP connection reuse
}

// DefaultConfig returns default benchmark configuration
func DefaultConfig() Config {
	return Config{
		Iterations:       100,
		Concurrency:      1,
		WarmupRuns:       5,
		RateLimit:        0,
		Timeout:          30 * time.Second,
		DisableKeepAlive: false,
	}
}

// Benchmarker executes API benchmarks based on OpenAPI specifications
type Benchmarker struct {
	config  Config
	spec    *parser.Parser
	gateway *gateway.Gateway
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewBenchmarker creates a new benchmarker. Requests are built by gw so they
// match what validation sends; client is tuned for the benchmark load.
func NewBenchmarker(config Config, spec *parser.Parser, gw *gateway.Gateway, client *http.Client, logger *slog.Logger) *Benchmarker {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if client == nil {
		client = &http.Client{}
	}
	tuned := *client
	if t, ok := tuned.Transport.(*http.Transport); ok {
		t = t.Clone()
		t.DisableKeepAlives = config.DisableKeepAlive
		t.MaxIdleConns = 100
		t.MaxIdleConnsPerHost = config.Concurrency
		t.IdleConnTimeout = 90 * time.Second
		tuned.Transport = t
	}
	if config.Timeout > 0 {
		tuned.Timeout = config.Timeout
	}

	// Create rate limiter if configured
	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), max(1, int(config.RateLimit)))
	}

	return &Benchmarker{
		config:  config,
		spec:    spec,
		gateway: gw,
		client:  &tuned,
		limiter: limiter,
		logger:  logger,
	}
}

// requestResult holds the result of a single request
type requestResult struct {
	Duration   time.Duration
	StatusCode int
	Error      string
}

// BenchmarkEndpoint benchmarks a single API operation
func (b *Benchmarker) BenchmarkEndpoint(
	ctx context.Context,
	endpoint models.Endpoint,
	tc *models.TestCase,
	onEvent OnBenchmarkEvent,
	index, total int,
) (models.BenchmarkResult, error) {
	result := models.BenchmarkResult{
		Path:        endpoint.Path,
		Method:      endpoint.Method,
		OperationID: endpoint.OperationID,
		Iterations:  b.config.Iterations,
		Concurrency: b.config.Concurrency,
		WarmupRuns:  b.config.WarmupRuns,
		StatusCodes: make(map[int]int),
	}

	call := callFor(endpoint, tc)

	// Build a sample request to validate
	if _, _, err := b.gateway.NewRequest(ctx, call); err != nil {
		return result, fmt.Errorf("failed to build request: %w", err)
	}

	// Warmup phase
	if b.config.WarmupRuns > 0 && onEvent != nil {
		onEvent(BenchmarkEvent{
			Type:     EventWarmupStarting,
			Endpoint: endpoint,
			Index:    index,
			Total:    total,
			MaxIter:  b.config.WarmupRuns,
		})
	}

	// Run warmup (single-threaded, no stats collection)
	for i := 0; i < b.config.WarmupRuns; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		b.executeRequest(ctx, call)

		if onEvent != nil && (i+1)%max(1, b.config.WarmupRuns/5) == 0 {
			onEvent(BenchmarkEvent{
				Type:     EventWarmupProgress,
				Endpoint: endpoint,
				Index:    index,
				Total:    total,
				Progress: i + 1,
				MaxIter:  b.config.WarmupRuns,
			})
		}
	}

	if b.config.WarmupRuns > 0 && onEvent != nil {
		onEvent(BenchmarkEvent{
			Type:     EventWarmupCompleted,
			Endpoint: endpoint,
			Index:    index,
			Total:    total,
		})
	}

	// Benchmark phase
	if onEvent != nil {
		onEvent(BenchmarkEvent{
			Type:     EventBenchmarkStarting,
			Endpoint: endpoint,
			Index:    index,
			Total:    total,
			MaxIter:  b.config.Iterations,
		})
	}

	startTime := time.Now()
	results := b.runConcurrentBenchmark(ctx, call, onEvent, endpoint, index, total)
	result.TotalDuration = time.Since(startTime)

	result = b.processResults(result, results)

	if onEvent != nil {
		onEvent(BenchmarkEvent{
			Type:     EventBenchmarkCompleted,
			Endpoint: endpoint,
			Result:   &result,
			Index:    index,
			Total:    total,
		})
	}

	b.logger.Debug("endpoint benchmarked",
		"method", endpoint.Method,
		"path", endpoint.Path,
		"avg", result.AvgTime,
		"errors", result.ErrorCount)

	return result, nil
}

func callFor(endpoint models.Endpoint, tc *models.TestCase) gateway.Call {
	if tc == nil {
		tc = &models.TestCase{}
	}
	return gateway.Call{
		Method:  endpoint.Method,
		Path:    gateway.ExpandPath(endpoint.Path, tc.PathParams),
		Params:  tc.Params,
		JSON:    tc.JSON,
		Headers: tc.Headers,
	}
}

// runConcurrentBenchmark executes the benchmark with worker pool
func (b *Benchmarker) runConcurrentBenchmark(
	ctx context.Context,
	call gateway.Call,
	onEvent OnBenchmarkEvent,
	endpoint models.Endpoint,
	index, total int,
) []requestResult {
	results := make([]requestResult, b.config.Iterations)
	jobs := make(chan int, b.config.Iterations)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var completed int
	var totalDuration time.Duration
	var errorCount int

	// Progress reporting interval
	progressInterval := max(1, b.config.Iterations/20) // ~5% intervals
	phaseStart := time.Now()

	for w := 0; w < b.config.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					results[i] = requestResult{Error: "canceled"}
					continue
				}

				if b.limiter != nil {
					if err := b.limiter.Wait(ctx); err != nil {
						results[i] = requestResult{Error: fmt.Sprintf("rate limiter: %v", err)}
						continue
					}
				}

				res := b.executeRequest(ctx, call)
				results[i] = res

				mu.Lock()
				completed++
				totalDuration += res.Duration
				if res.Error != "" {
					errorCount++
				}
				currentCompleted := completed
				currentTotalDuration := totalDuration
				currentErrorCount := errorCount
				mu.Unlock()

				// Report progress periodically
				if onEvent != nil && currentCompleted%progressInterval == 0 {
					var reqsPerSec float64
					if elapsed := time.Since(phaseStart).Seconds(); elapsed > 0 {
						reqsPerSec = float64(currentCompleted) / elapsed
					}

					onEvent(BenchmarkEvent{
						Type:          EventBenchmarkProgress,
						Endpoint:      endpoint,
						Index:         index,
						Total:         total,
						Progress:      currentCompleted,
						MaxIter:       b.config.Iterations,
						RunningAvg:    currentTotalDuration / time.Duration(currentCompleted),
						RunningReqSec: reqsPerSec,
						ErrorCount:    currentErrorCount,
					})
				}
			}
		}()
	}

	for i := 0; i < b.config.Iterations; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// executeRequest executes a single HTTP request and returns timing
func (b *Benchmarker) executeRequest(ctx context.Context, call gateway.Call) requestResult {
	result := requestResult{}

	req, _, err := b.gateway.NewRequest(ctx, call)
	if err != nil {
		result.Error = fmt.Sprintf("build request failed: %v", err)
		return result
	}

	startTime := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		result.Duration = time.Since(startTime)
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	result.Duration = time.Since(startTime)

	result.StatusCode = resp.StatusCode
	return result
}

// processResults calculates statistics from raw results
func (b *Benchmarker) processResults(result models.BenchmarkResult, rawResults []requestResult) models.BenchmarkResult {
	if len(rawResults) == 0 {
		return result
	}

	declared := make(map[string]bool)
	for _, code := range b.spec.GetExpectedStatusCodes(result.Path, result.Method) {
		declared[code] = true
	}

	var durations []time.Duration
	var totalDuration time.Duration
	errorSet := make(map[string]bool)

	for _, r := range rawResults {
		if r.Error != "" {
			result.ErrorCount++
			if len(result.SampleErrors) < 5 && !errorSet[r.Error] {
				result.SampleErrors = append(result.SampleErrors, r.Error)
				errorSet[r.Error] = true
			}
		} else {
			result.SuccessCount++
			durations = append(durations, r.Duration)
			totalDuration += r.Duration
		}

		if r.StatusCode > 0 {
			result.StatusCodes[r.StatusCode]++
			if len(declared) > 0 && !declared[strconv.Itoa(r.StatusCode)] {
				result.UndeclaredCount++
			}
		}
	}

	// Calculate timing stats (only from successful requests)
	if len(durations) > 0 {
		sort.Slice(durations, func(i, j int) bool {
			return durations[i] < durations[j]
		})

		result.MinTime = durations[0]
		result.MaxTime = durations[len(durations)-1]
		result.AvgTime = totalDuration / time.Duration(len(durations))
		result.P50Time = percentile(durations, 50)
		result.P90Time = percentile(durations, 90)
		result.P99Time = percentile(durations, 99)
	}

	if result.TotalDuration > 0 {
		result.RequestsPerSec = float64(result.Iterations) / result.TotalDuration.Seconds()
	}

	if result.Iterations > 0 {
		result.ErrorRate = float64(result.ErrorCount) / float64(result.Iterations) * 100
	}

	return result
}

// percentile calculates the p-th percentile from sorted durations
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	index := float64(len(sorted)-1) * float64(p) / 100.0
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[lower]
	}

	// Linear interpolation
	weight := index - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// BenchmarkEndpoints benchmarks multiple operations with live event reporting
func (b *Benchmarker) BenchmarkEndpoints(
	ctx context.Context,
	endpoints []models.Endpoint,
	data models.TestData,
	onEvent OnBenchmarkEvent,
) models.BenchmarkSummary {
	summary := models.BenchmarkSummary{
		Iterations:  b.config.Iterations,
		Concurrency: b.config.Concurrency,
		WarmupRuns:  b.config.WarmupRuns,
		Results:     make([]models.BenchmarkResult, 0, len(endpoints)),
	}

	startTime := time.Now()

	for i, e := range endpoints {
		if ctx.Err() != nil {
			break
		}

		result, err := b.BenchmarkEndpoint(ctx, e, data.Lookup(e.Path, e.Method), onEvent, i, len(endpoints))
		if err != nil {
			b.logger.Warn("benchmark failed", "method", e.Method, "path", e.Path, "error", err)
			result.SampleErrors = append(result.SampleErrors, err.Error())
			result.ErrorCount = result.Iterations
			result.ErrorRate = 100
		}
		summary.AddResult(result)
	}

	summary.Finalize(time.Since(startTime))
	return summary
}

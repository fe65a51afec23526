package models

import "time"

// RequestSnapshot captures what was sent for reporting
type RequestSnapshot struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
}

// ResponseSnapshot captures what was received for reporting
type ResponseSnapshot struct {
	StatusCode int               `json:"status_code"`
	Reason     string            `json:"reason"`
	Headers    map[string]string `json:"headers"`
	Size       int               `json:"size"`
	Body       *string           `json:"body,omitempty"`
}

// EndpointResult represents the result of validating a single API endpoint
type EndpointResult struct {
	// Operation details
	Path        string `json:"path"`
	Method      string `json:"method"`
	OperationID string `json:"operation_id,omitempty"`

	// Outcome
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Response details
	StatusCode   int           `json:"status_code,omitempty"`
	ResponseTime time.Duration `json:"response_time_ns"`

	// Per-validator results keyed by validator name
	Validations map[string]ValidationResult `json:"validations"`

	Request  *RequestSnapshot  `json:"request,omitempty"`
	Response *ResponseSnapshot `json:"response,omitempty"`
	Endpoint *Endpoint         `json:"endpoint,omitempty"`
}

// RunSummary is the aggregate view over a run's results
type RunSummary struct {
	Total               int           `json:"total"`
	Passed              int           `json:"passed"`
	Failed              int           `json:"failed"`
	SuccessRate         float64       `json:"success_rate"`
	AverageResponseTime time.Duration `json:"average_response_time_ns"`
}

// Summarize derives a RunSummary from results
func Summarize(results []EndpointResult) RunSummary {
	var s RunSummary
	if len(results) == 0 {
		return s
	}

	var totalTime time.Duration
	for _, r := range results {
		s.Total++
		if r.Success {
			s.Passed++
		}
		totalTime += r.ResponseTime
	}
	s.Failed = s.Total - s.Passed
	s.SuccessRate = float64(s.Passed) / float64(s.Total) * 100
	s.AverageResponseTime = totalTime / time.Duration(s.Total)
	return s
}

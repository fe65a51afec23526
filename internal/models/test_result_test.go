package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0, s.Passed)
	assert.Equal(t, 0, s.Failed)
	assert.Zero(t, s.SuccessRate)
	assert.Zero(t, s.AverageResponseTime)
}

func TestSummarizeMixed(t *testing.T) {
	results := []EndpointResult{
		{Success: true, ResponseTime: 100 * time.Millisecond},
		{Success: false, ResponseTime: 300 * time.Millisecond},
		{Success: true, ResponseTime: 200 * time.Millisecond},
		{Success: false},
	}

	s := Summarize(results)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 2, s.Failed)
	assert.InDelta(t, 50.0, s.SuccessRate, 0.001)
	assert.Equal(t, 150*time.Millisecond, s.AverageResponseTime)
}

func TestSummarizeInvariants(t *testing.T) {
	for n := 0; n < 8; n++ {
		var results []EndpointResult
		for i := 0; i < n; i++ {
			results = append(results, EndpointResult{Success: i%3 == 0})
		}
		s := Summarize(results)
		assert.Equal(t, s.Total, s.Passed+s.Failed)
		assert.GreaterOrEqual(t, s.SuccessRate, 0.0)
		assert.LessOrEqual(t, s.SuccessRate, 100.0)
	}
}

func TestValidationResultAddError(t *testing.T) {
	r := NewValidationResult(true, "")
	assert.False(t, r.HasErrors())

	r.AddWarning("just a warning", nil)
	assert.True(t, r.Valid)
	assert.True(t, r.HasWarnings())

	r.AddError("broken", map[string]any{"field": "id"})
	assert.False(t, r.Valid)
	assert.True(t, r.HasErrors())
	assert.Equal(t, "id", r.Errors[0].Details["field"])
}

func TestTestDataLookup(t *testing.T) {
	data := TestData{
		"/orders/{id}": {
			"get": {PathParams: map[string]any{"id": 42}},
		},
	}

	tc := data.Lookup("/orders/{id}", "GET")
	if assert.NotNil(t, tc) {
		assert.Equal(t, 42, tc.PathParams["id"])
	}
	assert.Nil(t, data.Lookup("/orders/{id}", "delete"))
	assert.Nil(t, data.Lookup("/missing", "get"))
	assert.Nil(t, TestData(nil).Lookup("/orders/{id}", "get"))
}

package validator

import (
	"net/http"
	"testing"

	"github.com/othaime-en/validapi/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func secureHeaders() http.Header {
	h := http.Header{}
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Strict-Transport-Security", "max-age=63072000")
	h.Set("Content-Security-Policy", "default-src 'none'")
	return h
}

func TestHeaderValidatorExpected(t *testing.T) {
	h := secureHeaders()
	h.Set("X-Request-Id", "abc")
	h.Set("Cache-Control", "no-store")
	resp := &gateway.Response{StatusCode: 200, Header: h}

	exp := Expectations{Headers: HeaderParams{Expected: map[string]*string{
		"x-request-id":  nil,
		"CACHE-CONTROL": strPtr("no-store"),
	}}}

	result := NewHeaderValidator().Validate(resp, exp)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestHeaderValidatorMisses(t *testing.T) {
	h := secureHeaders()
	h.Set("Cache-Control", "public")
	resp := &gateway.Response{StatusCode: 200, Header: h}

	exp := Expectations{Headers: HeaderParams{Expected: map[string]*string{
		"Cache-Control": strPtr("no-store"),
		"X-Request-Id":  nil,
	}}}

	result := NewHeaderValidator().Validate(resp, exp)
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "Header Cache-Control has unexpected value", result.Errors[0].Message)
	assert.Equal(t, "public", result.Errors[0].Details["actual"])
	assert.Equal(t, "Missing expected header: X-Request-Id", result.Errors[1].Message)
}

func TestHeaderValidatorSecurityWarnings(t *testing.T) {
	h := http.Header{}
	h.Set("X-Content-Type-Options", "sniff")
	resp := &gateway.Response{StatusCode: 200, Header: h}

	result := NewHeaderValidator().Validate(resp, Expectations{})

	assert.True(t, result.Valid)
	var messages []string
	for _, w := range result.Warnings {
		messages = append(messages, w.Message)
	}
	assert.Equal(t, []string{
		"x-content-type-options should be 'nosniff'",
		"Missing security header: x-frame-options",
		"Missing security header: x-xss-protection",
		"Missing security header: strict-transport-security",
		"Missing security header: content-security-policy",
	}, messages)
}

func TestHeaderValidatorEmptySecurityHeaderIsPresent(t *testing.T) {
	h := secureHeaders()
	h.Set("Content-Security-Policy", "")
	resp := &gateway.Response{StatusCode: 200, Header: h}

	result := NewHeaderValidator().Validate(resp, Expectations{})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestHeaderValidatorNilHeader(t *testing.T) {
	result := NewHeaderValidator().Validate(&gateway.Response{StatusCode: 204}, Expectations{})
	assert.True(t, result.Valid)
	assert.Len(t, result.Warnings, len(SecurityHeaders))
}

package validator

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/othaime-en/validapi/internal/gateway"
	"github.com/othaime-en/validapi/internal/models"
)

// SecurityHeaders are checked on every response. Their absence only warns.
var SecurityHeaders = []string{
	"x-content-type-options",
	"x-frame-options",
	"x-xss-protection",
	"strict-transport-security",
	"content-security-policy",
}

// HeaderValidator checks expected response headers and reports missing
// security headers as warnings
type HeaderValidator struct{}

// NewHeaderValidator creates a header validator
func NewHeaderValidator() *HeaderValidator {
	return &HeaderValidator{}
}

func (v *HeaderValidator) Name() string {
	return NameHeaders
}

func (v *HeaderValidator) Validate(resp *gateway.Response, exp Expectations) models.ValidationResult {
	result := models.NewValidationResult(true, "Headers validated")
	header := resp.Header
	if header == nil {
		header = http.Header{}
	}

	names := make([]string, 0, len(exp.Headers.Expected))
	for name := range exp.Headers.Expected {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		want := exp.Headers.Expected[name]
		values := header.Values(name)
		if len(values) == 0 {
			result.AddError(fmt.Sprintf("Missing expected header: %s", name), map[string]any{
				"header": name,
			})
			continue
		}
		if want != nil && values[0] != *want {
			result.AddError(fmt.Sprintf("Header %s has unexpected value", name), map[string]any{
				"header":   name,
				"expected": *want,
				"actual":   values[0],
			})
		}
	}

	for _, name := range SecurityHeaders {
		if len(header.Values(name)) == 0 {
			result.AddWarning(fmt.Sprintf("Missing security header: %s", name), map[string]any{
				"header": name,
			})
			continue
		}
		value := header.Get(name)
		if name == "x-content-type-options" && value != "nosniff" {
			result.AddWarning("x-content-type-options should be 'nosniff'", map[string]any{
				"header": name,
				"actual": value,
			})
		}
	}

	if !result.Valid {
		result.Message = "Header validation failed"
	}
	return result
}

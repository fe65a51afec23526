package validator

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/othaime-en/validapi/internal/gateway"
	"github.com/othaime-en/validapi/internal/models"
)

// StatusCodeValidator checks the response status against the declared codes.
// In strict mode only exact codes match; otherwise "default" and range keys
// such as "4XX" match as well.
type StatusCodeValidator struct {
	strict bool
}

// NewStatusCodeValidator creates a status code validator
func NewStatusCodeValidator(strict bool) *StatusCodeValidator {
	return &StatusCodeValidator{strict: strict}
}

func (v *StatusCodeValidator) Name() string {
	return NameStatusCode
}

func (v *StatusCodeValidator) Validate(resp *gateway.Response, exp Expectations) models.ValidationResult {
	codes := exp.StatusCodes.Codes
	if len(codes) == 0 {
		return models.NewValidationResult(true, "Expected status codes not specified")
	}

	actual := strconv.Itoa(resp.StatusCode)
	if v.matches(actual, codes) {
		result := models.NewValidationResult(true, fmt.Sprintf("Status code %s is expected", actual))
		result.Details["status_code"] = resp.StatusCode
		return result
	}

	result := models.NewValidationResult(false, fmt.Sprintf("Unexpected status code %s", actual))
	result.AddError(fmt.Sprintf("Status code %s not in expected codes %v", actual, codes), map[string]any{
		"actual_code":    resp.StatusCode,
		"expected_codes": append([]string(nil), codes...),
		"reason":         reasonPhrase(resp),
	})
	return result
}

func (v *StatusCodeValidator) matches(actual string, codes []string) bool {
	for _, code := range codes {
		if code == actual {
			return true
		}
	}
	if v.strict {
		return false
	}
	for _, code := range codes {
		code = strings.ToUpper(code)
		if code == "DEFAULT" {
			return true
		}
		if len(code) == 3 && strings.HasSuffix(code, "XX") && code[0] == actual[0] {
			return true
		}
	}
	return false
}

func reasonPhrase(resp *gateway.Response) string {
	if resp.Reason != "" {
		return resp.Reason
	}
	return http.StatusText(resp.StatusCode)
}

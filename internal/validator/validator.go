// Package validator checks HTTP responses against the expectations derived
// from an OpenAPI document. Each validator is a pure function of one
// response and its expectations; none of them perform I/O.
package validator

import (
	"github.com/othaime-en/validapi/internal/gateway"
	"github.com/othaime-en/validapi/internal/models"
)

// Validator names, in the order the engine runs them
const (
	NameStatusCode = "status_code"
	NameHeaders    = "headers"
	NameSchema     = "schema"
)

// Validator checks one aspect of a response
type Validator interface {
	Name() string
	Validate(resp *gateway.Response, exp Expectations) models.ValidationResult
}

// StatusCodeParams are the expectations for the status code check
type StatusCodeParams struct {
	// Codes are the declared response keys, possibly including "default"
	Codes []string
}

// HeaderParams are the expectations for the header check. A nil value means
// the header must be present with any value.
type HeaderParams struct {
	Expected map[string]*string
}

// SchemaParams are the expectations for the body check
type SchemaParams struct {
	// Schema is the declared response schema; nil skips the structural check
	Schema map[string]any
	// Root is the full document that internal references resolve against
	Root map[string]any
}

// Expectations bundles the parameters for every validator
type Expectations struct {
	StatusCodes StatusCodeParams
	Headers     HeaderParams
	Schema      SchemaParams
}

// Defaults returns the status, header and schema validators in run order
func Defaults(strict bool, nullableFields []string) []Validator {
	return []Validator{
		NewStatusCodeValidator(strict),
		NewHeaderValidator(),
		NewSchemaValidator(nullableFields),
	}
}

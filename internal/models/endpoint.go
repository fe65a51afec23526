package models

// Endpoint describes one (path, method) operation declared in an OpenAPI document
type Endpoint struct {
	Path        string           `json:"path"`
	Method      string           `json:"method"`
	OperationID string           `json:"operation_id"`
	Summary     string           `json:"summary,omitempty"`
	Description string           `json:"description,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Parameters  []map[string]any `json:"parameters,omitempty"`
	RequestBody map[string]any   `json:"request_body,omitempty"`
	Responses   map[string]any   `json:"responses,omitempty"`
	Security    []any            `json:"security,omitempty"`
}

// SpecInfo is the document metadata handed to reporters
type SpecInfo struct {
	Title          string `json:"title"`
	Version        string `json:"version"`
	OpenAPIVersion string `json:"openapi_version"`
	BaseURL        string `json:"base_url"`
}

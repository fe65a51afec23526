package validator

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/othaime-en/validapi/internal/gateway"
	"github.com/othaime-en/validapi/internal/models"
	"github.com/othaime-en/validapi/internal/parser"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	resourceURL = "mem://openapi.json"
	// responseKey is where the target schema is placed in the compiled resource
	responseKey = "x-validapi-response"

	maxResponseText = 500
	maxValueText    = 100
)

// SchemaValidator checks a JSON body against a draft-7 rendition of the
// declared response schema
type SchemaValidator struct {
	nullable map[string]bool
}

// NewSchemaValidator creates a schema validator. A null value at a field named
// in nullableFields never fails a check.
func NewSchemaValidator(nullableFields []string) *SchemaValidator {
	nullable := make(map[string]bool, len(nullableFields))
	for _, f := range nullableFields {
		nullable[f] = true
	}
	return &SchemaValidator{nullable: nullable}
}

func (v *SchemaValidator) Name() string {
	return NameSchema
}

func (v *SchemaValidator) Validate(resp *gateway.Response, exp Expectations) (result models.ValidationResult) {
	result = models.NewValidationResult(true, "")

	defer func() {
		if r := recover(); r != nil {
			result.AddError(fmt.Sprintf("Unexpected validation error: %v", r), nil)
			result.Message = "Schema validation failed"
		}
	}()

	contentType := resp.ContentType()
	if !strings.Contains(strings.ToLower(contentType), "json") {
		if contentType == "" {
			contentType = "unknown"
		}
		result.AddError("Response is not JSON", map[string]any{
			"content_type": contentType,
			"status_code":  resp.StatusCode,
		})
		result.Message = "Response is not JSON"
		return result
	}

	data, err := decodeJSON(resp.Body)
	if err != nil {
		result.AddError(fmt.Sprintf("Invalid JSON in response: %v", err), map[string]any{
			"response_text": truncate(string(resp.Body), maxResponseText),
		})
		result.Message = "Invalid JSON in response"
		return result
	}

	if exp.Schema.Schema != nil {
		if err := v.checkSchema(data, exp.Schema, &result); err != nil {
			result.AddError(fmt.Sprintf("Unexpected validation error: %v", err), nil)
		}
	}

	inspect(data, &result)

	if result.Valid {
		result.Message = "Response validates against schema"
	} else {
		result.Message = "Response does not match schema"
	}
	return result
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("invalid character after top-level value")
	}
	return data, nil
}

// checkSchema validates data and records every non-suppressed violation
func (v *SchemaValidator) checkSchema(data any, params SchemaParams, result *models.ValidationResult) error {
	doc := buildResource(params.Root, Normalize(params.Schema))

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(resourceURL, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	schema, err := compiler.Compile(resourceURL + "#/" + responseKey)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	err = schema.Validate(data)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}

	// The compiled resource is re-read so that pointers resolve against
	// exactly what was validated
	var resource any
	if err := json.Unmarshal(raw, &resource); err != nil {
		return fmt.Errorf("failed to decode schema: %w", err)
	}

	for _, leaf := range leaves(verr) {
		path := instancePath(data, leaf.InstanceLocation)
		value, _ := lookup(data, path)
		keyword := lastSegment(leaf.KeywordLocation)
		schemaPtr := fragment(leaf.AbsoluteKeywordLocation)

		if v.suppressed(value, keyword, path, resource, schemaPtr) {
			continue
		}

		expected, _ := lookup(resource, pointerSegments(schemaPtr))
		result.AddError("Schema validation error: "+leaf.Message, map[string]any{
			"path":            path,
			"invalid_value":   summarize(value),
			"schema_path":     pointerSegments(leaf.KeywordLocation),
			"validator":       keyword,
			"validator_value": expected,
		})
	}
	return nil
}

// suppressed reports whether a null value should be tolerated
func (v *SchemaValidator) suppressed(value any, keyword string, path []any, resource any, schemaPtr string) bool {
	if value != nil {
		return false
	}
	if keyword == "type" {
		segments := pointerSegments(schemaPtr)
		if len(segments) > 0 {
			parent, _ := lookup(resource, segments[:len(segments)-1])
			if m, ok := parent.(map[string]any); ok {
				if tagged, _ := m[ReadOnlyMarker].(bool); tagged {
					return true
				}
			}
		}
	}
	if len(path) > 0 {
		if name, ok := path[len(path)-1].(string); ok && v.nullable[name] {
			return true
		}
	}
	return false
}

// buildResource places the target schema inside a copy of the document whose
// component schemas are normalized, so internal references still resolve
func buildResource(root map[string]any, target map[string]any) map[string]any {
	doc := make(map[string]any, len(root)+1)
	for k, val := range root {
		doc[k] = val
	}
	if components, ok := root["components"].(map[string]any); ok {
		copied := make(map[string]any, len(components))
		for k, val := range components {
			copied[k] = val
		}
		if schemas, ok := components["schemas"].(map[string]any); ok {
			copied["schemas"] = NormalizeAll(schemas)
		}
		doc["components"] = copied
	}
	doc[responseKey] = target
	return doc
}

// leaves flattens a validation error tree into its most specific causes
func leaves(err *jsonschema.ValidationError) []*jsonschema.ValidationError {
	var out []*jsonschema.ValidationError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, e)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(err)

	sort.SliceStable(out, func(i, j int) bool {
		if c := comparePointers(out[i].InstanceLocation, out[j].InstanceLocation); c != 0 {
			return c < 0
		}
		return out[i].KeywordLocation < out[j].KeywordLocation
	})
	return out
}

// comparePointers orders instance pointers segment by segment, comparing
// numeric segments as numbers so array positions keep their order
func comparePointers(a, b string) int {
	as, bs := pointerSegments(a), pointerSegments(b)
	for k := 0; k < len(as) && k < len(bs); k++ {
		x, _ := as[k].(string)
		y, _ := bs[k].(string)
		if x == y {
			continue
		}
		xi, xerr := strconv.Atoi(x)
		yi, yerr := strconv.Atoi(y)
		if xerr == nil && yerr == nil {
			return cmp.Compare(xi, yi)
		}
		return strings.Compare(x, y)
	}
	return cmp.Compare(len(as), len(bs))
}

// instancePath converts an instance pointer into segments, using ints for
// positions inside arrays
func instancePath(data any, pointer string) []any {
	path := []any{}
	current := data
	for _, seg := range pointerSegments(pointer) {
		s, _ := seg.(string)
		switch node := current.(type) {
		case []any:
			if i, err := strconv.Atoi(s); err == nil {
				path = append(path, i)
				if i >= 0 && i < len(node) {
					current = node[i]
				} else {
					current = nil
				}
				continue
			}
			path = append(path, s)
			current = nil
		case map[string]any:
			path = append(path, s)
			current = node[s]
		default:
			path = append(path, s)
			current = nil
		}
	}
	return path
}

// lookup walks a decoded JSON tree
func lookup(root any, path []any) (any, bool) {
	current := root
	for _, seg := range path {
		switch node := current.(type) {
		case map[string]any:
			key := fmt.Sprint(seg)
			next, ok := node[key]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, ok := seg.(int)
			if !ok {
				n, err := strconv.Atoi(fmt.Sprint(seg))
				if err != nil {
					return nil, false
				}
				i = n
			}
			if i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, true
}

// pointerSegments splits a JSON pointer into unescaped segments
func pointerSegments(pointer string) []any {
	pointer = strings.TrimPrefix(pointer, "#")
	if pointer == "" || pointer == "/" {
		return []any{}
	}
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		out = append(out, parser.UnescapePointer(p))
	}
	return out
}

func lastSegment(pointer string) string {
	segments := pointerSegments(pointer)
	if len(segments) == 0 {
		return ""
	}
	s, _ := segments[len(segments)-1].(string)
	return s
}

func fragment(location string) string {
	if i := strings.Index(location, "#"); i >= 0 {
		return location[i+1:]
	}
	return ""
}

// summarize renders a value for reports: scalars are truncated and
// containers are described by size
func summarize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return truncate(v, maxValueText)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return truncate(v.String(), maxValueText)
	case map[string]any:
		return fmt.Sprintf("object(%d keys)", len(v))
	case []any:
		return fmt.Sprintf("array(%d items)", len(v))
	default:
		return v
	}
}

// truncate keeps at most n runes of s
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

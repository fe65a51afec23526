package validator

// ReadOnlyMarker tags schemas that were declared readOnly
const ReadOnlyMarker = "x-validapi-readonly"

// Normalize rewrites an OpenAPI 3.0 schema into draft-7 JSON Schema and
// returns a deep copy. The input is never modified and the result is stable
// under repeated application.
//
//   - nullable: true with type T becomes type [T, "null"], and null joins any enum
//   - readOnly: true adds the ReadOnlyMarker extension
//   - boolean exclusiveMinimum/exclusiveMaximum become the numeric draft-7 form
func Normalize(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out, _ := normalizeValue(schema).(map[string]any)
	return out
}

// NormalizeAll normalizes every schema in a name -> schema mapping
func NormalizeAll(schemas map[string]any) map[string]any {
	out := make(map[string]any, len(schemas))
	for name, s := range schemas {
		if m, ok := s.(map[string]any); ok {
			out[name] = Normalize(m)
		} else {
			out[name] = deepCopy(s)
		}
	}
	return out
}

func normalizeValue(v any) any {
	schema, ok := v.(map[string]any)
	if !ok {
		return deepCopy(v)
	}

	out := make(map[string]any, len(schema))
	for k, child := range schema {
		switch k {
		case "properties":
			props, ok := child.(map[string]any)
			if !ok {
				out[k] = deepCopy(child)
				continue
			}
			normalized := make(map[string]any, len(props))
			for name, prop := range props {
				normalized[name] = normalizeValue(prop)
			}
			out[k] = normalized
		case "items", "additionalProperties", "not":
			out[k] = normalizeValue(child)
		case "allOf", "anyOf", "oneOf":
			list, ok := child.([]any)
			if !ok {
				out[k] = deepCopy(child)
				continue
			}
			normalized := make([]any, len(list))
			for i, item := range list {
				normalized[i] = normalizeValue(item)
			}
			out[k] = normalized
		default:
			out[k] = deepCopy(child)
		}
	}

	if nullable, _ := out["nullable"].(bool); nullable {
		delete(out, "nullable")
		if t, ok := out["type"]; ok {
			out["type"] = withNull(t)
		}
		if enum, ok := out["enum"].([]any); ok && !containsNull(enum) {
			out["enum"] = append(enum, nil)
		}
	} else if _, ok := out["nullable"].(bool); ok {
		delete(out, "nullable")
	}

	if readOnly, _ := out["readOnly"].(bool); readOnly {
		out[ReadOnlyMarker] = true
	}

	rewriteExclusive(out, "exclusiveMinimum", "minimum")
	rewriteExclusive(out, "exclusiveMaximum", "maximum")

	return out
}

// withNull adds "null" to a type keyword
func withNull(t any) any {
	switch typ := t.(type) {
	case string:
		if typ == "null" {
			return typ
		}
		return []any{typ, "null"}
	case []any:
		for _, item := range typ {
			if item == "null" {
				return typ
			}
		}
		return append(typ, "null")
	default:
		return t
	}
}

func containsNull(values []any) bool {
	for _, v := range values {
		if v == nil {
			return true
		}
	}
	return false
}

// rewriteExclusive converts {minimum: 5, exclusiveMinimum: true} into
// {exclusiveMinimum: 5}. A false flag is dropped.
func rewriteExclusive(schema map[string]any, exclusive, bound string) {
	flag, ok := schema[exclusive].(bool)
	if !ok {
		return
	}
	delete(schema, exclusive)
	if !flag {
		return
	}
	if limit, ok := schema[bound]; ok {
		schema[exclusive] = limit
		delete(schema, bound)
	}
}

func deepCopy(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[k] = deepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return v
	}
}

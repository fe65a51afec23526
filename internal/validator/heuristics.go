package validator

import (
	"fmt"
	"sort"

	"github.com/othaime-en/validapi/internal/models"
)

// inspect adds advisory warnings about the shape of a response body.
// It never changes validity.
func inspect(data any, result *models.ValidationResult) {
	if obj, ok := data.(map[string]any); ok {
		if msg, ok := obj["error"].(string); ok {
			result.AddWarning("Response contains error field", map[string]any{
				"error": truncate(msg, maxValueText),
			})
		}
		if isPaginated(obj) {
			result.Details["pagination_detected"] = true
		}
	}
	scanEmpty(data, "root", result)
}

func isPaginated(obj map[string]any) bool {
	if _, ok := obj["data"].([]any); !ok {
		return false
	}
	for _, k := range []string{"page", "limit", "total"} {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// scanEmpty warns about null, empty string, empty object and empty array
// values anywhere in the tree
func scanEmpty(value any, path string, result *models.ValidationResult) {
	switch v := value.(type) {
	case nil:
		result.AddWarning(fmt.Sprintf("Null value at %s", path), map[string]any{"path": path})
	case string:
		if v == "" {
			result.AddWarning(fmt.Sprintf("Empty string at %s", path), map[string]any{"path": path})
		}
	case map[string]any:
		if len(v) == 0 {
			result.AddWarning(fmt.Sprintf("Empty object at %s", path), map[string]any{"path": path})
			return
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			scanEmpty(v[k], childPath(path, k), result)
		}
	case []any:
		if len(v) == 0 {
			result.AddWarning(fmt.Sprintf("Empty array at %s", path), map[string]any{"path": path})
			return
		}
		for i, item := range v {
			scanEmpty(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}

func childPath(parent, key string) string {
	if parent == "root" {
		return key
	}
	return parent + "." + key
}

package parser

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ResolveReference follows an internal JSON pointer such as
// "#/components/schemas/User" and returns the value it points at.
// The returned value is shared with the document and must not be modified.
func (p *Parser) ResolveReference(ref string) (any, error) {
	if !strings.HasPrefix(ref, "#") {
		return nil, &ReferenceError{Ref: ref, External: true}
	}

	pointer := strings.TrimPrefix(strings.TrimPrefix(ref, "#"), "/")
	var current any = p.root
	if pointer == "" {
		return current, nil
	}

	for _, raw := range strings.Split(pointer, "/") {
		segment := UnescapePointer(raw)

		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, &ReferenceError{Ref: ref, Segment: segment}
			}
			current = next
		case []any:
			i, err := strconv.Atoi(segment)
			if err != nil || i < 0 || i >= len(node) {
				return nil, &ReferenceError{Ref: ref, Segment: segment}
			}
			current = node[i]
		default:
			return nil, &ReferenceError{Ref: ref, Segment: segment}
		}
	}

	return current, nil
}

// UnescapePointer decodes one JSON-pointer segment: URL escapes first, then
// ~1 and ~0
func UnescapePointer(segment string) string {
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}
	segment = strings.ReplaceAll(segment, "~1", "/")
	return strings.ReplaceAll(segment, "~0", "~")
}

// resolveAlias follows YAML aliases to the anchored node
func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func mappingValue(n *yaml.Node, name string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == name {
			return resolveAlias(n.Content[i+1])
		}
	}
	return nil
}

// mappingKeys returns the keys of a mapping node in document order
func mappingKeys(n *yaml.Node) []string {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return keys
}

// stringKeys converts the map[any]any values produced by some YAML inputs
// (integer status codes, for instance) into map[string]any
func stringKeys(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			node[k] = stringKeys(child)
		}
		return node
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[fmt.Sprint(k)] = stringKeys(child)
		}
		return out
	case []any:
		for i, child := range node {
			node[i] = stringKeys(child)
		}
		return node
	default:
		return v
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

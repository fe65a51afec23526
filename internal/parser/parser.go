package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/othaime-en/validapi/internal/models"
	"github.com/pb33f/libopenapi"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	"gopkg.in/yaml.v3"
)

// Methods lists the HTTP verbs recognized as operations, lower-cased as they
// appear in a path item
var Methods = []string{"get", "put", "post", "delete", "options", "head", "patch"}

// Format is the serialization of a spec document
type Format int

const (
	// FormatJSON is a JSON document
	FormatJSON Format = iota
	// FormatYAML is a YAML document
	FormatYAML
)

// FormatForPath chooses the document format from the file extension
func FormatForPath(filePath string) Format {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parser indexes an OpenAPI specification. It is read-only after load and can
// be shared by every validator of a run.
type Parser struct {
	path string
	raw  []byte
	root map[string]any

	paths     []pathEntry
	endpoints []operationEntry
	index     map[string]int

	// libopenapi high-level model; nil when the document could not be modeled
	model     *v3.Document
	modelErrs string
}

type pathEntry struct {
	path       string
	operations int
}

type operationEntry struct {
	endpoint    models.Endpoint
	statusCodes []string
}

// ParseFile parses an OpenAPI specification file and returns a Parser instance
func ParseFile(filePath string) (*Parser, error) {
	specBytes, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: filePath, Reason: ErrNotFound, Cause: err}
		}
		return nil, &LoadError{Path: filePath, Reason: ErrMalformed, Cause: err}
	}

	p, err := Parse(specBytes, FormatForPath(filePath))
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = filePath
		}
		return nil, err
	}
	p.path = filePath
	return p, nil
}

// Parse parses an in-memory OpenAPI document
func Parse(specBytes []byte, format Format) (*Parser, error) {
	if format == FormatJSON {
		// Surface encoding/json's message for JSON documents
		var probe any
		if err := json.Unmarshal(specBytes, &probe); err != nil {
			return nil, &LoadError{Reason: ErrMalformed, Cause: err}
		}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(specBytes, &doc); err != nil {
		return nil, &LoadError{Reason: ErrMalformed, Cause: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &LoadError{Reason: ErrMalformed, Cause: errors.New("document is empty")}
	}

	rootNode := resolveAlias(doc.Content[0])
	if rootNode.Kind != yaml.MappingNode {
		return nil, &LoadError{Reason: ErrMalformed, Cause: errors.New("document root must be a mapping")}
	}

	var tree any
	if err := rootNode.Decode(&tree); err != nil {
		return nil, &LoadError{Reason: ErrMalformed, Cause: err}
	}
	root, _ := stringKeys(tree).(map[string]any)

	p := &Parser{
		raw:   specBytes,
		root:  root,
		index: make(map[string]int),
	}
	p.indexOperations(rootNode)
	p.buildModel()

	return p, nil
}

// buildModel builds the libopenapi model used for servers and metadata.
// Problems are kept for ValidateSpec; they never fail the load.
func (p *Parser) buildModel() {
	document, err := libopenapi.NewDocument(p.raw)
	if err != nil {
		p.modelErrs = err.Error()
		return
	}

	model, errs := document.BuildV3Model()
	if errs != nil {
		p.modelErrs = fmt.Sprintf("%v", errs)
	}
	if model != nil {
		p.model = &model.Model
	}
}

// indexOperations walks the paths mapping in declaration order
func (p *Parser) indexOperations(rootNode *yaml.Node) {
	pathsNode := mappingValue(rootNode, "paths")
	if pathsNode == nil || pathsNode.Kind != yaml.MappingNode {
		return
	}

	paths, _ := p.root["paths"].(map[string]any)

	for i := 0; i+1 < len(pathsNode.Content); i += 2 {
		pathKey := pathsNode.Content[i].Value
		itemNode := resolveAlias(pathsNode.Content[i+1])
		entry := pathEntry{path: pathKey}

		pathItem, _ := paths[pathKey].(map[string]any)
		if itemNode.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(itemNode.Content); j += 2 {
				methodKey := itemNode.Content[j].Value
				if !isMethod(methodKey) {
					continue
				}
				operation, _ := pathItem[methodKey].(map[string]any)
				if operation == nil {
					continue
				}

				op := operationEntry{
					endpoint:    p.describe(pathKey, methodKey, operation),
					statusCodes: mappingKeys(mappingValue(resolveAlias(itemNode.Content[j+1]), "responses")),
				}
				p.index[key(pathKey, methodKey)] = len(p.endpoints)
				p.endpoints = append(p.endpoints, op)
				entry.operations++
			}
		}
		p.paths = append(p.paths, entry)
	}
}

func (p *Parser) describe(path, method string, operation map[string]any) models.Endpoint {
	endpoint := models.Endpoint{
		Path:        path,
		Method:      strings.ToUpper(method),
		OperationID: fmt.Sprintf("%s_%s", method, path),
		Tags:        []string{},
	}

	if id, ok := operation["operationId"].(string); ok && id != "" {
		endpoint.OperationID = id
	}
	endpoint.Summary, _ = operation["summary"].(string)
	endpoint.Description, _ = operation["description"].(string)

	if tags, ok := operation["tags"].([]any); ok {
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				endpoint.Tags = append(endpoint.Tags, s)
			}
		}
	}

	if params, ok := operation["parameters"].([]any); ok {
		for _, param := range params {
			m, ok := param.(map[string]any)
			if !ok {
				continue
			}
			// Resolve $ref if present, keeping the raw entry when it dangles
			if ref, ok := m["$ref"].(string); ok {
				if resolved, err := p.ResolveReference(ref); err == nil {
					if rm, ok := resolved.(map[string]any); ok {
						m = rm
					}
				}
			}
			endpoint.Parameters = append(endpoint.Parameters, m)
		}
	}

	endpoint.RequestBody, _ = operation["requestBody"].(map[string]any)
	endpoint.Responses, _ = operation["responses"].(map[string]any)
	endpoint.Security, _ = operation["security"].([]any)

	return endpoint
}

// Path returns the file the document was loaded from, if any
func (p *Parser) Path() string {
	return p.path
}

// Root returns the parsed document. Callers must treat it as read-only.
func (p *Parser) Root() map[string]any {
	return p.root
}

// ListEndpoints returns every operation in declaration order
func (p *Parser) ListEndpoints() []models.Endpoint {
	endpoints := make([]models.Endpoint, 0, len(p.endpoints))
	for _, op := range p.endpoints {
		endpoints = append(endpoints, op.endpoint)
	}
	return endpoints
}

// GetEndpoint returns the descriptor for path and method
func (p *Parser) GetEndpoint(path, method string) (models.Endpoint, bool) {
	i, ok := p.index[key(path, method)]
	if !ok {
		return models.Endpoint{}, false
	}
	return p.endpoints[i].endpoint, true
}

// GetExpectedStatusCodes returns the declared response keys for an operation,
// which may include "default"
func (p *Parser) GetExpectedStatusCodes(path, method string) []string {
	i, ok := p.index[key(path, method)]
	if !ok {
		return nil
	}
	return append([]string(nil), p.endpoints[i].statusCodes...)
}

// GetResponseSchema returns the JSON schema declared for a status code with
// any $ref resolved. It returns nil when no JSON media type is declared.
func (p *Parser) GetResponseSchema(path, method, statusCode string) (map[string]any, error) {
	endpoint, ok := p.GetEndpoint(path, method)
	if !ok || endpoint.Responses == nil {
		return nil, nil
	}

	response, err := p.deref(endpoint.Responses[statusCode])
	if err != nil || response == nil {
		return nil, err
	}

	content, _ := response["content"].(map[string]any)
	media, _ := content["application/json"].(map[string]any)
	if media == nil {
		// Accept other JSON media types such as application/problem+json
		for _, ct := range sortedKeys(content) {
			if strings.Contains(strings.ToLower(ct), "json") {
				media, _ = content[ct].(map[string]any)
				break
			}
		}
	}
	if media == nil {
		return nil, nil
	}

	return p.deref(media["schema"])
}

// GetServerURLs returns the server URLs from the OpenAPI spec
func (p *Parser) GetServerURLs() []string {
	var urls []string
	if p.model != nil {
		for _, server := range p.model.Servers {
			if server != nil && server.URL != "" {
				urls = append(urls, server.URL)
			}
		}
		return urls
	}

	servers, _ := p.root["servers"].([]any)
	for _, s := range servers {
		if server, ok := s.(map[string]any); ok {
			if u, ok := server["url"].(string); ok && u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

// GetBaseURL returns the first server URL, or an empty string
func (p *Parser) GetBaseURL() string {
	urls := p.GetServerURLs()
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

// Info returns the document metadata used by reports
func (p *Parser) Info() models.SpecInfo {
	info := models.SpecInfo{BaseURL: p.GetBaseURL()}

	if p.model != nil {
		info.OpenAPIVersion = p.model.Version
		if p.model.Info != nil {
			info.Title = p.model.Info.Title
			info.Version = p.model.Info.Version
		}
		return info
	}

	info.OpenAPIVersion, _ = p.root["openapi"].(string)
	if raw, ok := p.root["info"].(map[string]any); ok {
		info.Title, _ = raw["title"].(string)
		info.Version, _ = raw["version"].(string)
	}
	return info
}

// deref returns v as a mapping, following a $ref when v is a reference object
func (p *Parser) deref(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}
	ref, ok := m["$ref"].(string)
	if !ok {
		return m, nil
	}
	resolved, err := p.ResolveReference(ref)
	if err != nil {
		return nil, err
	}
	out, _ := resolved.(map[string]any)
	return out, nil
}

func key(path, method string) string {
	return strings.ToUpper(method) + " " + path
}

func isMethod(s string) bool {
	s = strings.ToLower(s)
	for _, m := range Methods {
		if m == s {
			return true
		}
	}
	return false
}

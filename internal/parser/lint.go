package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ValidateSpec returns advisory structural warnings about the document.
// Warnings never prevent the document from being used.
func (p *Parser) ValidateSpec() []string {
	var warnings []string

	if _, ok := p.root["openapi"]; !ok {
		warnings = append(warnings, "Missing 'openapi' version field")
	}

	info, ok := p.root["info"].(map[string]any)
	if !ok {
		warnings = append(warnings, "Missing 'info' section")
	} else {
		if _, ok := info["title"]; !ok {
			warnings = append(warnings, "Missing 'info.title' field")
		}
		if _, ok := info["version"]; !ok {
			warnings = append(warnings, "Missing 'info.version' field")
		}
	}

	if len(p.paths) == 0 {
		warnings = append(warnings, "No paths defined in specification")
	}

	for _, entry := range p.paths {
		if entry.operations == 0 {
			warnings = append(warnings, fmt.Sprintf("Path '%s' has no operations", entry.path))
		}
	}

	for _, op := range p.endpoints {
		if len(op.statusCodes) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s %s has no responses defined",
				op.endpoint.Method, op.endpoint.Path))
		}
	}

	if p.modelErrs != "" {
		warnings = append(warnings, "Model: "+p.modelErrs)
	}

	return append(warnings, p.lintStructure()...)
}

// lintStructure runs kin-openapi's document validation
func (p *Parser) lintStructure() []string {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(p.raw)
	if err != nil {
		return []string{"Structure: " + err.Error()}
	}

	ctx := loader.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := doc.Validate(ctx); err != nil {
		var warnings []string
		for _, line := range strings.Split(err.Error(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				warnings = append(warnings, "Structure: "+line)
			}
		}
		return warnings
	}
	return nil
}

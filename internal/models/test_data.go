package models

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TestCase holds caller-supplied request inputs and expectations for one endpoint
type TestCase struct {
	PathParams      map[string]any     `yaml:"path_params" json:"path_params,omitempty"`
	Params          map[string]any     `yaml:"params" json:"params,omitempty"`
	JSON            any                `yaml:"json" json:"json,omitempty"`
	Headers         map[string]string  `yaml:"headers" json:"headers,omitempty"`
	ExpectedHeaders map[string]*string `yaml:"expected_headers" json:"expected_headers,omitempty"`
}

// TestData maps path -> lower-cased method -> test case
type TestData map[string]map[string]TestCase

// Lookup returns the test case for path and method, or nil when none was supplied
func (d TestData) Lookup(path, method string) *TestCase {
	if d == nil {
		return nil
	}
	methods, ok := d[path]
	if !ok {
		return nil
	}
	tc, ok := methods[strings.ToLower(method)]
	if !ok {
		return nil
	}
	return &tc
}

// LoadTestData reads a YAML or JSON test data file. Method keys are
// lower-cased so "GET" and "get" address the same case.
func LoadTestData(filePath string) (TestData, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read test data: %w", err)
	}
	return ParseTestData(raw)
}

// ParseTestData decodes test data from YAML or JSON bytes
func ParseTestData(raw []byte) (TestData, error) {
	var decoded map[string]map[string]TestCase
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse test data: %w", err)
	}

	data := make(TestData, len(decoded))
	for path, methods := range decoded {
		cases := make(map[string]TestCase, len(methods))
		for method, tc := range methods {
			cases[strings.ToLower(method)] = tc
		}
		data[path] = cases
	}
	return data, nil
}

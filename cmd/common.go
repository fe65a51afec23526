package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/othaime-en/validapi/internal/models"
	"github.com/othaime-en/validapi/internal/parser"
)

var (
	// Flags shared by validate and benchmark
	serverURL    string
	filter       string
	tags         []string
	testDataFile string
	verbose      bool

	isTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// Color helpers
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	white  = color.New(color.FgWhite, color.Bold).SprintFunc()
)

// loadSpec parses the document and picks the base URL: --server, then the
// first declared server, then localhost
func loadSpec(specFile string) (*parser.Parser, string, error) {
	p, err := parser.ParseFile(specFile)
	if err != nil {
		return nil, "", fmt.Errorf("error parsing OpenAPI file: %w", err)
	}

	baseURL := serverURL
	if baseURL == "" {
		baseURL = p.GetBaseURL()
	}
	if baseURL == "" {
		baseURL = "http://localhost"
	}
	return p, baseURL, nil
}

// loadTestData reads --test-data when given
func loadTestData() (models.TestData, error) {
	if testDataFile == "" {
		return models.TestData{}, nil
	}
	return models.LoadTestData(testDataFile)
}

// selectEndpoint matches an endpoint against --filter and --tags
func selectEndpoint(e models.Endpoint) bool {
	if filter != "" {
		if !strings.Contains(e.Path, filter) && !strings.Contains(e.OperationID, filter) {
			return false
		}
	}

	if len(tags) > 0 {
		for _, t := range tags {
			if slices.Contains(e.Tags, t) {
				return true
			}
		}
		return false
	}

	return true
}

func filterEndpoints(endpoints []models.Endpoint) []models.Endpoint {
	var filtered []models.Endpoint
	for _, e := range endpoints {
		if selectEndpoint(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

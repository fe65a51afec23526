/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/othaime-en/validapi/internal/gateway"
	"github.com/othaime-en/validapi/internal/models"
	"github.com/othaime-en/validapi/internal/output"
	"github.com/othaime-en/validapi/internal/tester"
	"github.com/othaime-en/validapi/internal/validator"
	"github.com/spf13/cobra"
)

var (
	outputFormat  string
	outputFile    string
	saveReport    bool
	stopOnFailure bool
	delay         time.Duration
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [openapi-spec-file]",
	Short: "Validate a live API against its OpenAPI document",
	Long: `Call every operation declared in the OpenAPI document and check the
responses against the declared status codes, headers and schemas.

Examples:
  # Validate against the first server in the document
  validapi validate api.yaml

  # Point at a local server and supply path parameters and bodies
  validapi validate api.yaml --server http://localhost:8080 --test-data data.yaml

  # Export a JSON report
  validapi validate api.yaml -o json --output-file report.json

  # Save an HTML report under reporting.output_dir
  validapi validate api.yaml -o html --save`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, baseURL, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	data, err := loadTestData()
	if err != nil {
		return err
	}

	format := outputFormat
	if format == "" {
		format = appConfig.Reporting.OutputFormat
	}
	reportFormat, err := output.ParseFormat(format)
	if err != nil {
		return err
	}

	opts := tester.RunOptions{
		Delay:              appConfig.Execution.DelayBetweenRequests,
		StopOnFirstFailure: appConfig.Execution.StopOnFirstFailure || stopOnFailure,
		Include:            selectEndpoint,
	}
	if cmd.Flags().Changed("delay") {
		opts.Delay = delay
	}

	if len(filterEndpoints(p.ListEndpoints())) == 0 {
		fmt.Println("No endpoints found matching the criteria")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw := gateway.New(baseURL, appConfig, gateway.WithLogger(logger))
	t := tester.NewTester(p, gw, appConfig, logger)

	info := p.Info()
	info.BaseURL = baseURL

	// Reports on stdout must not be interleaved with progress output
	toStdout := outputFormat != "" && outputFile == "" && !saveReport
	if !toStdout {
		fmt.Printf("\n%s\n", white(fmt.Sprintf("=== Validating %s %s ===", info.Title, info.Version)))
		fmt.Printf("Server: %s\n\n", baseURL)
	}
	opts.OnEvent = progressPrinter(toStdout)

	results, err := t.ValidateAllEndpoints(ctx, data, opts)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Fprintln(os.Stderr, "\nValidation interrupted, reporting partial results...")
	}

	report := output.NewReport(info, results)

	switch {
	case toStdout || outputFile != "":
		if err := output.ExportReport(report, reportFormat, outputFile); err != nil {
			return fmt.Errorf("error exporting results: %w", err)
		}
		if outputFile != "" {
			fmt.Printf("\nReport written to: %s\n", outputFile)
			displaySummary(report.Summary)
		}
	default:
		displaySummary(report.Summary)
	}

	if saveReport {
		path, err := output.ReportPath(appConfig.Reporting.OutputDir, reportFormat, report.GeneratedAt)
		if err != nil {
			return err
		}
		if err := output.ExportReport(report, reportFormat, path); err != nil {
			return fmt.Errorf("error exporting results: %w", err)
		}
		fmt.Printf("Report saved to: %s\n", path)
	}

	if report.Summary.Failed > 0 {
		os.Exit(1)
	}
	return nil
}

// progressPrinter renders live per-endpoint output
func progressPrinter(quiet bool) tester.OnTestEvent {
	if quiet {
		return nil
	}

	var s *spinner.Spinner
	return func(event tester.TestEvent) {
		prefix := fmt.Sprintf("[%d/%d]", event.Index+1, event.Total)

		switch event.Type {
		case tester.EventStarting:
			if isTTY {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = fmt.Sprintf(" %s %s %s", prefix, event.Endpoint.Method, event.Endpoint.Path)
				s.Start()
			}

		case tester.EventCompleted:
			if s != nil {
				s.Stop()
				s = nil
			}
			displayResult(prefix, *event.Result)
		}
	}
}

func displayResult(prefix string, result models.EndpointResult) {
	status := green("✓ PASS")
	if !result.Success {
		status = red("✗ FAIL")
	}

	fmt.Printf("%s %s %s %s", prefix, status, result.Method, result.Path)
	if result.StatusCode != 0 {
		fmt.Printf(" %s %d", cyan("→"), result.StatusCode)
	}
	fmt.Printf(" (%v)\n", result.ResponseTime.Round(time.Millisecond))

	if result.Error != "" {
		fmt.Printf("    Error: %s\n", red(result.Error))
	}

	for _, name := range []string{validator.NameStatusCode, validator.NameHeaders, validator.NameSchema} {
		v, ok := result.Validations[name]
		if !ok {
			continue
		}
		for _, e := range v.Errors {
			fmt.Printf("    %s %s: %s\n", red("-"), name, e.Message)
			if verbose {
				printDetails(e.Details)
			}
		}
		if verbose {
			for _, w := range v.Warnings {
				fmt.Printf("    %s %s: %s\n", yellow("!"), name, w.Message)
			}
		}
	}

	if verbose {
		if result.OperationID != "" {
			fmt.Printf("    Operation ID: %s\n", result.OperationID)
		}
		if result.Request != nil {
			fmt.Printf("    Request: %s %s\n", result.Request.Method, result.Request.URL)
		}
		if result.Response != nil {
			fmt.Printf("    Response: %d %s, %s\n",
				result.Response.StatusCode, result.Response.Reason,
				humanize.Bytes(uint64(result.Response.Size)))
		}
	}
}

func printDetails(details map[string]any) {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("        %s: %v\n", k, details[k])
	}
}

func displaySummary(summary models.RunSummary) {
	fmt.Println()
	fmt.Printf("%s\n", white("=== Validation Summary ==="))
	fmt.Printf("Total:         %d\n", summary.Total)
	fmt.Printf("Passed:        %s\n", green(summary.Passed))
	if summary.Failed > 0 {
		fmt.Printf("Failed:        %s\n", red(summary.Failed))
	} else {
		fmt.Printf("Failed:        %d\n", summary.Failed)
	}
	fmt.Printf("Success Rate:  %.1f%%\n", summary.SuccessRate)
	fmt.Printf("Avg Response:  %v\n", summary.AverageResponseTime.Round(time.Millisecond))
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&serverURL, "server", "", "Override server URL from OpenAPI spec")
	validateCmd.Flags().StringVar(&filter, "filter", "", "Filter endpoints by path pattern or operation ID")
	validateCmd.Flags().StringSliceVar(&tags, "tags", []string{}, "Filter by OpenAPI tags (can be specified multiple times)")
	validateCmd.Flags().StringVar(&testDataFile, "test-data", "", "YAML or JSON file with per-endpoint parameters and bodies")
	validateCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed output")

	validateCmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Report format: json, csv, html")
	validateCmd.Flags().StringVar(&outputFile, "output-file", "", "Write report to file (default: stdout)")
	validateCmd.Flags().BoolVar(&saveReport, "save", false, "Also save the report under reporting.output_dir")
	validateCmd.Flags().BoolVar(&stopOnFailure, "stop-on-failure", false, "Stop after the first failed endpoint")
	validateCmd.Flags().DurationVar(&delay, "delay", 0, "Minimum delay between requests (e.g. 250ms)")
}

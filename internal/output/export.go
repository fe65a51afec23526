package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/othaime-en/validapi/internal/models"
)

// Format represents the output format type
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// validatorOrder is the order validations are listed in reports
var validatorOrder = []string{"status_code", "headers", "schema"}

// Report is the document written for one validation run
type Report struct {
	RunID       string                  `json:"run_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	SpecInfo    models.SpecInfo         `json:"spec_info"`
	Summary     models.RunSummary       `json:"summary"`
	Results     []models.EndpointResult `json:"results"`
}

// NewReport assembles a report with a fresh run id
func NewReport(info models.SpecInfo, results []models.EndpointResult) Report {
	if results == nil {
		results = []models.EndpointResult{}
	}
	return Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		SpecInfo:    info,
		Summary:     models.Summarize(results),
		Results:     results,
	}
}

// ExportReport writes a validation report to filePath, or stdout when empty
func ExportReport(report Report, format Format, filePath string) (err error) {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closeFile(closer, &err)
	}
	return WriteReport(w, report, format)
}

// WriteReport encodes a validation report in the given format
func WriteReport(w io.Writer, report Report, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatCSV:
		return exportReportCSV(w, report)
	case FormatHTML:
		return exportReportHTML(w, report)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// ExportBenchmarkSummary exports benchmark results to the specified format
func ExportBenchmarkSummary(summary models.BenchmarkSummary, format Format, filePath string) (err error) {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closeFile(closer, &err)
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, summary)
	case FormatCSV:
		return exportBenchmarkCSV(w, summary)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// ReportPath returns a timestamped report file name inside dir, creating dir
// if needed
func ReportPath(dir string, format Format, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	name := fmt.Sprintf("api_validation_report_%s.%s", at.Format("20060102_150405"), format)
	return filepath.Join(dir, name), nil
}

// getWriter returns an io.Writer for output (stdout or file)
func getWriter(filePath string) (io.Writer, io.Closer, error) {
	if filePath == "" {
		return os.Stdout, nil, nil
	}

	f, err := os.Create(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f, nil
}

// closeFile closes c and reports its error unless an earlier one is set
func closeFile(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("failed to close output file: %w", cerr)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exportReportCSV writes one row per endpoint result
func exportReportCSV(w io.Writer, report Report) error {
	cw := csv.NewWriter(w)

	header := []string{
		"method", "path", "operation_id", "success", "status_code",
		"response_time_ms", "errors", "warnings", "error",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range report.Results {
		errCount, warnCount := 0, 0
		var messages []string
		for _, name := range validatorOrder {
			v, ok := r.Validations[name]
			if !ok {
				continue
			}
			errCount += len(v.Errors)
			warnCount += len(v.Warnings)
			for _, e := range v.Errors {
				messages = append(messages, e.Message)
			}
		}

		errText := r.Error
		if errText == "" {
			errText = strings.Join(messages, "; ")
		}

		row := []string{
			r.Method,
			r.Path,
			r.OperationID,
			strconv.FormatBool(r.Success),
			strconv.Itoa(r.StatusCode),
			fmt.Sprintf("%.2f", float64(r.ResponseTime.Microseconds())/1000),
			strconv.Itoa(errCount),
			strconv.Itoa(warnCount),
			errText,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// exportBenchmarkCSV exports benchmark results as CSV
func exportBenchmarkCSV(w io.Writer, summary models.BenchmarkSummary) error {
	cw := csv.NewWriter(w)

	header := []string{
		"method", "path", "operation_id", "iterations", "concurrency",
		"min_ms", "max_ms", "avg_ms", "p50_ms", "p90_ms", "p99_ms",
		"requests_per_sec", "success_count", "error_count", "error_rate",
		"undeclared_status",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range summary.Results {
		row := []string{
			r.Method,
			r.Path,
			r.OperationID,
			strconv.Itoa(r.Iterations),
			strconv.Itoa(r.Concurrency),
			fmt.Sprintf("%.2f", float64(r.MinTime.Microseconds())/1000),
			fmt.Sprintf("%.2f", float64(r.MaxTime.Microseconds())/1000),
			fmt.Sprintf("%.2f", float64(r.AvgTime.Microseconds())/1000),
			fmt.Sprintf("%.2f", float64(r.P50Time.Microseconds())/1000),
			fmt.Sprintf("%.2f", float64(r.P90Time.Microseconds())/1000),
			fmt.Sprintf("%.2f", float64(r.P99Time.Microseconds())/1000),
			fmt.Sprintf("%.2f", r.RequestsPerSec),
			strconv.Itoa(r.SuccessCount),
			strconv.Itoa(r.ErrorCount),
			fmt.Sprintf("%.2f", r.ErrorRate),
			strconv.Itoa(r.UndeclaredCount),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ParseFormat parses a string into a Format, returning error if invalid
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("invalid format '%s': must be 'json', 'csv' or 'html'", s)
	}
}

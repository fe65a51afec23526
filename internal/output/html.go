package output

import (
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.New("").
	Funcs(templateFuncs).
	ParseFS(templateFS, "templates/*.tmpl"))

var templateFuncs = template.FuncMap{
	"ms": func(d time.Duration) string {
		return humanize.FormatFloat("#,###.##", float64(d.Microseconds())/1000)
	},
	"bytes": func(n int) string {
		return humanize.Bytes(uint64(max(n, 0)))
	},
	"validatorNames": func() []string {
		return validatorOrder
	},
}

// exportReportHTML renders a standalone HTML page for the report
func exportReportHTML(w io.Writer, report Report) error {
	return reportTemplate.ExecuteTemplate(w, "report", report)
}

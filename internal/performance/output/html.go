package output

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/prreview/loadgen/internal/performance/engine"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDuration": formatDuration,
	"formatNumber":   formatNumber,
	"formatLatency":  formatLatency,
	"percent":        func(f float64) string { return fmt.Sprintf("%.2f%%", f*100) },
	"clock":          func(t time.Time) string { return t.Format("15:04:05") },
}).Parse(htmlTemplate))

// WriteHTML renders result as a standalone HTML page.
func WriteHTML(w io.Writer, result *engine.TestResult) error {
	if result == nil {
		return errors.New("result cannot be nil")
	}
	return errors.Wrap(reportTemplate.Execute(w, NewReport(result)), "failed to render HTML report")
}

// WriteHTMLFile writes the HTML report to path, creating parent directories
// as needed.
func WriteHTMLFile(path string, result *engine.TestResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create output directory")
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create HTML file")
	}

	if err := WriteHTML(f, result); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "failed to close HTML file")
}

// formatLatency keeps two significant decimals below 10 units.
func formatLatency(d time.Duration) string {
	switch {
	case d == 0:
		return "0"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < 10*time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

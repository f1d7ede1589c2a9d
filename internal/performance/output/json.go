package output

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/prreview/loadgen/internal/performance/engine"
	"github.com/prreview/loadgen/internal/performance/metrics"
)

// Report is the JSON form of a test result.
type Report struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	StartTime   time.Time                `json:"startTime"`
	EndTime     time.Time                `json:"endTime"`
	Duration    string                   `json:"duration"`
	Passed      bool                     `json:"passed"`
	Error       string                   `json:"error,omitempty"`
	Scenarios   []ScenarioReport         `json:"scenarios"`
	Thresholds  []engine.ThresholdResult `json:"thresholds,omitempty"`
}

// ScenarioReport is the JSON form of one scenario's result.
type ScenarioReport struct {
	Name     string           `json:"name"`
	Executor string           `json:"executor"`
	Error    string           `json:"error,omitempty"`
	Summary  *metrics.Summary `json:"summary"`
}

// NewReport converts result into its JSON form. Scenarios are in name order.
func NewReport(result *engine.TestResult) *Report {
	r := &Report{
		Name:        result.Name,
		Description: result.Description,
		StartTime:   result.StartTime,
		EndTime:     result.EndTime,
		Duration:    result.Duration.String(),
		Passed:      result.Passed,
		Scenarios:   make([]ScenarioReport, 0, len(result.Scenarios)),
		Thresholds:  result.Thresholds,
	}
	if result.Error != nil {
		r.Error = result.Error.Error()
	}

	for _, name := range result.ScenarioNames() {
		sr := result.Scenarios[name]
		s := ScenarioReport{
			Name:     name,
			Executor: sr.Executor,
			Summary:  sr.Summary,
		}
		if sr.Error != nil {
			s.Error = sr.Error.Error()
		}
		r.Scenarios = append(r.Scenarios, s)
	}
	return r
}

// WriteJSON writes result as indented JSON.
func WriteJSON(w io.Writer, result *engine.TestResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(NewReport(result)), "failed to encode JSON report")
}

// WriteJSONFile writes result as indented JSON to path, creating parent
// directories as needed.
func WriteJSONFile(path string, result *engine.TestResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create output directory")
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}

	if err := WriteJSON(f, result); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "failed to close output file")
}

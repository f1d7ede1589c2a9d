package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/prreview/loadgen/internal/performance/executor"
)

// LoadConfig loads a test configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadConfig(path string) (*TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*TestConfig, error) {
	var config TestConfig

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, errors.Wrap(err, "failed to parse JSON config")
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, errors.Wrap(err, "failed to parse YAML config")
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config (unknown format %s)", ext)
		}
	}

	return &config, nil
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var seconds int
	var rest string
	if n, _ := fmt.Sscanf(s, "%d%s", &seconds, &rest); n == 1 {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, errors.Errorf("invalid duration format: %s", s)
}

// ResolveVariables replaces {{name}} placeholders from vars. Unresolved
// placeholders are left as-is.
func ResolveVariables(input string, vars map[string]string) string {
	if !strings.Contains(input, "{{") {
		return input
	}

	result := input
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}

// MergeVariables merges multiple variable maps in order.
// Later maps override earlier ones.
func MergeVariables(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// ApplyDefaults applies default values to a TestConfig. Presets must be
// resolved first.
func ApplyDefaults(config *TestConfig) {
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = Duration(30 * time.Second)
	}
	if config.Settings.MaxConnectionsPerHost == 0 {
		config.Settings.MaxConnectionsPerHost = 100
	}
	if config.Settings.MaxIdleConnsPerHost == 0 {
		config.Settings.MaxIdleConnsPerHost = 100
	}
	if config.Settings.UserAgent == "" {
		config.Settings.UserAgent = "loadgen/1.0"
	}

	if config.Options == nil {
		config.Options = &ExecutionOptions{}
	}

	for name, sc := range config.Scenarios {
		if sc != nil {
			applyScenarioDefaults(name, sc)
		}
	}
}

func applyScenarioDefaults(name string, sc *ScenarioConfig) {
	if sc.Executor == "" {
		sc.Executor = string(executor.TypeConstantArrivalRate)
	}
	if sc.TimeUnit == "" {
		sc.TimeUnit = "1s"
	}
	if sc.Rate == 0 {
		sc.Rate = 1
	}
	if sc.PreAllocatedVUs == 0 && sc.MaxVUs == 0 {
		sc.PreAllocatedVUs = 1
	}
	if sc.MaxVUs == 0 {
		sc.MaxVUs = sc.PreAllocatedVUs * 10
	}

	if sc.Request != nil {
		if sc.Request.Name == "" {
			sc.Request.Name = name
		}
		if sc.Request.Method == "" {
			sc.Request.Method = "GET"
		}
		sc.Request.Method = strings.ToUpper(sc.Request.Method)
	}
}

// ConvertToExecutorConfig converts a ScenarioConfig to an executor.Config.
func ConvertToExecutorConfig(name string, sc *ScenarioConfig) (*executor.Config, error) {
	cfg := &executor.Config{
		Name:            name,
		Type:            executor.Type(sc.Executor),
		Rate:            sc.Rate,
		PreAllocatedVUs: sc.PreAllocatedVUs,
		MaxVUs:          sc.MaxVUs,
	}

	durations := []struct {
		field string
		value string
		dest  *time.Duration
	}{
		{"timeUnit", sc.TimeUnit, &cfg.TimeUnit},
		{"duration", sc.Duration, &cfg.Duration},
		{"gracefulStop", sc.GracefulStop, &cfg.GracefulStop},
		{"catchUpWindow", sc.CatchUpWindow, &cfg.CatchUpWindow},
		{"thinkTime", sc.ThinkTime, &cfg.ThinkTime},
	}
	for _, d := range durations {
		parsed, err := ParseDurationString(d.value)
		if err != nil {
			return nil, errors.Wrapf(err, "scenarios.%s.%s", name, d.field)
		}
		*d.dest = parsed
	}

	return cfg, nil
}

package prreview

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/prreview/loadgen/internal/performance"
	"github.com/prreview/loadgen/internal/performance/config"
	"github.com/prreview/loadgen/internal/performance/executor"
)

// Preset names.
const (
	PresetCreatePR   = "create_pr"
	PresetReassignPR = "reassign_pr"
	PresetGetReviews = "get_reviews"
)

// Preset is a built-in scenario against the PR-review service.
type Preset struct {
	Name        string
	Description string
	Scenario    config.ScenarioConfig
}

func steady(pre, max int) config.ScenarioConfig {
	return config.ScenarioConfig{
		Executor:        string(executor.TypeConstantArrivalRate),
		Rate:            5,
		TimeUnit:        "1s",
		Duration:        "2m",
		PreAllocatedVUs: pre,
		MaxVUs:          max,
		ThinkTime:       "100ms",
	}
}

var presets = map[string]func() Preset{
	PresetCreatePR: func() Preset {
		sc := steady(10, 20)
		sc.Request = &config.RequestConfig{
			Name:   PresetCreatePR,
			Method: "POST",
			URL:    "{{baseUrl}}/pullRequest/create",
			Headers: map[string]string{
				"Content-Type":  "application/json",
				"Authorization": "Bearer {{adminToken}}",
			},
			Body: `{"pull_request_id":"pr-{{vu}}-{{timestamp}}","pull_request_name":"load-test-pr","author_id":"{{authorId}}"}`,
		}
		sc.Checks = []config.CheckConfig{{Status: []int{201, 400}}}
		return Preset{
			Name:        PresetCreatePR,
			Description: "create pull requests as admin",
			Scenario:    sc,
		}
	},
	PresetReassignPR: func() Preset {
		sc := steady(10, 20)
		sc.Request = &config.RequestConfig{
			Name:   PresetReassignPR,
			Method: "POST",
			URL:    "{{baseUrl}}/pullRequest/reassign",
			Headers: map[string]string{
				"Content-Type":  "application/json",
				"Authorization": "Bearer {{adminToken}}",
			},
			Body: `{"pull_request_id":"{{prId}}","old_user_id":"{{oldUserId}}"}`,
		}
		sc.Checks = []config.CheckConfig{{Status: []int{200, 400}}}
		return Preset{
			Name:        PresetReassignPR,
			Description: "reassign a reviewer on one pull request",
			Scenario:    sc,
		}
	},
	PresetGetReviews: func() Preset {
		sc := steady(5, 10)
		sc.Request = &config.RequestConfig{
			Name:   PresetGetReviews,
			Method: "GET",
			URL:    "{{baseUrl}}/users/getReview?user_id={{userId}}",
			Headers: map[string]string{
				"Authorization": "Bearer {{userToken}}",
			},
		}
		sc.Checks = []config.CheckConfig{{Status: []int{200}}}
		return Preset{
			Name:        PresetGetReviews,
			Description: "list pull requests a user reviews",
			Scenario:    sc,
		}
	},
}

// LookupPreset returns a fresh copy of the named preset.
func LookupPreset(name string) (Preset, bool) {
	fn, ok := presets[name]
	if !ok {
		return Preset{}, false
	}
	return fn(), true
}

// Presets returns every preset sorted by name.
func Presets() []Preset {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Preset, 0, len(names))
	for _, name := range names {
		out = append(out, presets[name]())
	}
	return out
}

// PresetConfig returns a test configuration running a single preset.
func PresetConfig(name string) (*config.TestConfig, error) {
	p, ok := LookupPreset(name)
	if !ok {
		return nil, unknownPreset("preset", name)
	}

	sc := p.Scenario
	return &config.TestConfig{
		Name:      p.Name,
		Scenarios: map[string]*config.ScenarioConfig{p.Name: &sc},
	}, nil
}

// ResolvePresets expands every scenario that names a preset. Fields set on
// the scenario override the preset's; checks replace the preset's checks
// when any are given.
func ResolvePresets(cfg *config.TestConfig) error {
	var result *multierror.Error

	for _, name := range config.SortedScenarioNames(cfg) {
		sc := cfg.Scenarios[name]
		if sc == nil || sc.Preset == "" {
			continue
		}

		p, ok := LookupPreset(sc.Preset)
		if !ok {
			result = multierror.Append(result, unknownPreset("scenarios."+name+".preset", sc.Preset))
			continue
		}

		merged := mergeScenario(p.Scenario, *sc)
		cfg.Scenarios[name] = &merged
	}

	return result.ErrorOrNil()
}

func unknownPreset(field, name string) error {
	var known []string
	for _, p := range Presets() {
		known = append(known, p.Name)
	}
	return &performance.ConfigError{
		Field:   field,
		Message: "unknown preset " + name + " (known: " + strings.Join(known, ", ") + ")",
	}
}

func mergeScenario(base, over config.ScenarioConfig) config.ScenarioConfig {
	out := base
	out.Preset = over.Preset

	if over.Executor != "" {
		out.Executor = over.Executor
	}
	if over.Rate != 0 {
		out.Rate = over.Rate
	}
	if over.TimeUnit != "" {
		out.TimeUnit = over.TimeUnit
	}
	if over.Duration != "" {
		out.Duration = over.Duration
	}
	if over.PreAllocatedVUs != 0 {
		out.PreAllocatedVUs = over.PreAllocatedVUs
	}
	if over.MaxVUs != 0 {
		out.MaxVUs = over.MaxVUs
	}
	if over.GracefulStop != "" {
		out.GracefulStop = over.GracefulStop
	}
	if over.CatchUpWindow != "" {
		out.CatchUpWindow = over.CatchUpWindow
	}
	if over.ThinkTime != "" {
		out.ThinkTime = over.ThinkTime
	}
	if len(over.Checks) > 0 {
		out.Checks = over.Checks
	}
	if len(over.Tags) > 0 {
		out.Tags = over.Tags
	}
	if over.Request != nil {
		out.Request = mergeRequest(base.Request, over.Request)
	}
	return out
}

func mergeRequest(base, over *config.RequestConfig) *config.RequestConfig {
	if base == nil {
		r := *over
		return &r
	}

	out := *base
	out.Headers = make(map[string]string, len(base.Headers)+len(over.Headers))
	for k, v := range base.Headers {
		out.Headers[k] = v
	}
	for k, v := range over.Headers {
		out.Headers[k] = v
	}
	if over.Name != "" {
		out.Name = over.Name
	}
	if over.Method != "" {
		out.Method = over.Method
	}
	if over.URL != "" {
		out.URL = over.URL
	}
	if over.Body != "" {
		out.Body = over.Body
	}
	if over.Timeout != "" {
		out.Timeout = over.Timeout
	}
	return &out
}

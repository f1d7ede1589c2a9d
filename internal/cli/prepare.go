package cli

import (
	"github.com/apex/log"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/prreview/loadgen/internal/performance/config"
	"github.com/prreview/loadgen/internal/prreview"
)

// addConfigFlags registers the flags that select and override a test
// configuration.
func addConfigFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("config", "c", "", "Test configuration file (YAML or JSON)")
	flags.StringSliceP("preset", "p", nil, "Built-in scenario to run instead of --config (repeatable)")
	flags.String("base-url", "", "Service base URL (overrides settings.baseUrl and $BASE_URL)")

	flags.Float64("rate", 0, "Override iterations per time unit for every scenario")
	flags.String("time-unit", "", "Override the period rate is expressed in (e.g. 1s, 1m)")
	flags.String("duration", "", "Override the arrival window (e.g. 30s, 2m)")
	flags.Int("pre-allocated-vus", 0, "Override pre-allocated VUs for every scenario")
	flags.Int("max-vus", 0, "Override maximum VUs for every scenario")
	flags.String("think-time", "", "Override think time after each iteration")
	flags.Bool("sequential", false, "Run scenarios one after another instead of concurrently")
}

// loadTestConfig builds a ready-to-run configuration from flags: it loads the
// file or presets, expands presets, applies overrides and the environment,
// fills defaults and validates.
func loadTestConfig(flags *pflag.FlagSet) (*config.TestConfig, error) {
	path, _ := flags.GetString("config")
	presets, _ := flags.GetStringSlice("preset")

	var cfg *config.TestConfig
	switch {
	case path != "" && len(presets) > 0:
		return nil, errors.New("--config and --preset are mutually exclusive")
	case path != "":
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	case len(presets) > 0:
		cfg = presetsConfig(presets)
	default:
		return nil, errors.New("either --config or --preset is required")
	}

	if err := prreview.ResolvePresets(cfg); err != nil {
		return nil, err
	}
	applyOverrides(cfg, flags)

	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	env.Apply(cfg)

	config.ApplyDefaults(cfg)
	log.Debugf("configuration: %s", spew.Sdump(cfg))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// presetsConfig builds a configuration with one scenario per preset.
func presetsConfig(names []string) *config.TestConfig {
	cfg := &config.TestConfig{
		Name:      "presets",
		Scenarios: make(map[string]*config.ScenarioConfig, len(names)),
	}
	if len(names) == 1 {
		cfg.Name = names[0]
	}
	for _, name := range names {
		cfg.Scenarios[name] = &config.ScenarioConfig{Preset: name}
	}
	return cfg
}

// applyOverrides copies explicitly set flags onto every scenario.
func applyOverrides(cfg *config.TestConfig, flags *pflag.FlagSet) {
	if flags.Changed("base-url") {
		cfg.Settings.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("sequential") {
		sequential, _ := flags.GetBool("sequential")
		if cfg.Options == nil {
			cfg.Options = &config.ExecutionOptions{}
		}
		cfg.Options.Sequential = sequential
	}

	for _, name := range config.SortedScenarioNames(cfg) {
		sc := cfg.Scenarios[name]
		if sc == nil {
			continue
		}

		if flags.Changed("rate") {
			sc.Rate, _ = flags.GetFloat64("rate")
		}
		if flags.Changed("time-unit") {
			sc.TimeUnit, _ = flags.GetString("time-unit")
		}
		if flags.Changed("duration") {
			sc.Duration, _ = flags.GetString("duration")
		}
		if flags.Changed("pre-allocated-vus") {
			sc.PreAllocatedVUs, _ = flags.GetInt("pre-allocated-vus")
		}
		if flags.Changed("max-vus") {
			sc.MaxVUs, _ = flags.GetInt("max-vus")
		}
		if flags.Changed("think-time") {
			sc.ThinkTime, _ = flags.GetString("think-time")
		}

		log.WithFields(log.Fields{
			"scenario": name,
			"rate":     sc.Rate,
			"duration": sc.Duration,
			"maxVUs":   sc.MaxVUs,
		}).Debug("scenario configured")
	}
}

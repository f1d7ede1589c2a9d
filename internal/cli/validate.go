package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prreview/loadgen/internal/performance/config"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration without generating load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadTestConfig(cmd.Flags())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "configuration is valid (%d scenarios)\n", len(cfg.Scenarios))
			for _, name := range config.SortedScenarioNames(cfg) {
				execCfg, err := config.ConvertToExecutorConfig(name, cfg.Scenarios[name])
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "  %-14s %g/%s for %s -> %d arrivals, VUs %d..%d\n",
					name, execCfg.Rate, execCfg.TimeUnit, execCfg.Duration,
					execCfg.ExpectedArrivals(), execCfg.PreAllocatedVUs, execCfg.MaxVUs)
			}
			return nil
		},
	}

	addConfigFlags(cmd)
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prreview/loadgen/internal/prreview"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List built-in scenarios for the PR-review service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, p := range prreview.Presets() {
				sc := p.Scenario
				fmt.Fprintf(w, "%-12s %s\n", p.Name, p.Description)
				fmt.Fprintf(w, "             %s %s\n", sc.Request.Method, sc.Request.URL)
				fmt.Fprintf(w, "             rate %g/%s for %s, VUs %d..%d, think %s\n",
					sc.Rate, sc.TimeUnit, sc.Duration, sc.PreAllocatedVUs, sc.MaxVUs, sc.ThinkTime)
			}
			return nil
		},
	}
}

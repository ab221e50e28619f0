package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sphincs.io/sphincs/internal/app"
)

func newScanCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one condition scanner cycle now",
		Long:  "Run every scanner pass once in this process, raising alerts for matching conditions and resolving alerts whose condition cleared.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return e.withApp(ctx, func(a *app.Application) error {
				report := a.Scanner.Scanner().RunCycle(ctx)
				if e.opts.jsonOut {
					if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
						return err
					}
				} else {
					renderCycle(cmd.OutOrStdout(), report)
				}
				if failed := report.Failed(); len(failed) > 0 {
					return fmt.Errorf("%d scanner pass(es) failed", len(failed))
				}
				return nil
			})
		},
	}
}

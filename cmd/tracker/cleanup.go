package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cleanupCmd() *cobra.Command {
	var (
		daysFlag int
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete tracking rows older than the retention windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}

			// --days overrides both configured windows
			if daysFlag > 0 {
				e.cfg.Tracking.Retention.SummaryDays = daysFlag
				e.cfg.Tracking.Retention.DetailDays = daysFlag
				// Rebuild the service so the override takes effect
				if e.service, err = rebuildService(e); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if dryRun {
				summaries, details, err := e.service.CleanupPreview(cmd.Context())
				if err != nil {
					return fmt.Errorf("cleanup preview: %w", err)
				}
				fmt.Fprintf(out, "Would delete %d summaries and %d details\n", summaries, details)
				return nil
			}

			summaries, details, err := e.service.Cleanup(cmd.Context())
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}
			fmt.Fprintf(out, "Deleted %d summaries and %d details\n", summaries, details)
			return nil
		},
	}

	cmd.Flags().IntVar(&daysFlag, "days", 0, "override the retention windows, in days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count rows without deleting")
	return cmd
}

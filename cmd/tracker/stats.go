package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ouredu/request-tracker/internal/domain/tracking"
)

func statsCmd() *cobra.Command {
	var (
		roleFlag string
		fromFlag string
		toFlag   string
	)

	cmd := &cobra.Command{
		Use:   "stats <user_id>",
		Short: "Show a user's access statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			roleID, err := parseRoleFlag(roleFlag)
			if err != nil {
				return err
			}

			e, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			// Default to the trailing 30 days
			to := time.Now().UTC()
			from := to.AddDate(0, 0, -30)
			if fromFlag != "" {
				if from, err = time.Parse("2006-01-02", fromFlag); err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
			}
			if toFlag != "" {
				if to, err = time.Parse("2006-01-02", toFlag); err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
			}

			summary, err := e.reporting.ActivitySummary(ctx, userID, roleID, from, to)
			if err != nil {
				return fmt.Errorf("activity summary: %w", err)
			}
			modules, err := e.reporting.ModulesAccessed(ctx, userID, roleID, &from, &to)
			if err != nil {
				return fmt.Errorf("modules accessed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User %s, %s to %s\n", userID, from.Format("2006-01-02"), to.Format("2006-01-02"))
			fmt.Fprintf(out, "  active days:    %d\n", summary.TotalDays)
			fmt.Fprintf(out, "  total requests: %d\n", summary.TotalRequests)
			fmt.Fprintf(out, "  daily average:  %.1f\n", summary.DailyAverage)
			if summary.FirstAccess != nil {
				fmt.Fprintf(out, "  first access:   %s\n", summary.FirstAccess.Format(time.RFC3339))
			}
			if summary.LastAccess != nil {
				fmt.Fprintf(out, "  last access:    %s\n", summary.LastAccess.Format(time.RFC3339))
			}

			if len(modules) > 0 {
				fmt.Fprintln(out, "  modules:")
				for _, m := range modules {
					fmt.Fprintf(out, "    %-24s %4d endpoints %6d visits\n", m.Module, m.UniqueEndpoints, m.TotalVisits)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&roleFlag, "role", "", "filter by role id")
	cmd.Flags().StringVar(&fromFlag, "from", "", "range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toFlag, "to", "", "range end (YYYY-MM-DD)")
	return cmd
}

func parseRoleFlag(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid role id: %w", err)
	}
	return &id, nil
}

func formatModule(d *tracking.AccessDetail) string {
	module := tracking.ModuleUnknown
	if d.Module != nil {
		module = *d.Module
	}
	if d.Submodule != nil {
		return module + "/" + *d.Submodule
	}
	return module
}

package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func journeyCmd() *cobra.Command {
	var (
		roleFlag string
		dateFlag string
	)

	cmd := &cobra.Command{
		Use:   "journey <user_id>",
		Short: "Show the endpoints a user visited on one day, in order",
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

			day := time.Now().UTC()
			if dateFlag != "" {
				if day, err = time.Parse("2006-01-02", dateFlag); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}

			e, err := setup()
			if err != nil {
				return err
			}

			details, err := e.reporting.UserJourney(cmd.Context(), userID, roleID, day)
			if err != nil {
				return fmt.Errorf("user journey: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(details) == 0 {
				fmt.Fprintf(out, "No visits recorded for %s on %s\n", userID, day.Format("2006-01-02"))
				return nil
			}

			fmt.Fprintf(out, "Journey for %s on %s\n", userID, day.Format("2006-01-02"))
			for i := range details {
				d := &details[i]
				fmt.Fprintf(out, "  %s  %-6s %-40s %-24s x%d\n",
					d.FirstVisit.Format("15:04:05"),
					d.Method,
					d.Endpoint,
					formatModule(d),
					d.VisitCount,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&roleFlag, "role", "", "filter by role id")
	cmd.Flags().StringVar(&dateFlag, "date", "", "day to inspect (YYYY-MM-DD), defaults to today")
	return cmd
}

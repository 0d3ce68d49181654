package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func moduleAccessCmd() *cobra.Command {
	var (
		roleFlag      string
		fromFlag      string
		toFlag        string
		submoduleFlag string
		limitFlag     int
	)

	cmd := &cobra.Command{
		Use:   "module-access <module>",
		Short: "List the users who accessed a module in a date range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			module := args[0]
			roleID, err := parseRoleFlag(roleFlag)
			if err != nil {
				return err
			}

			to := time.Now().UTC()
			from := to.AddDate(0, 0, -7)
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

			var submodule *string
			if submoduleFlag != "" {
				submodule = &submoduleFlag
			}

			e, err := setup()
			if err != nil {
				return err
			}

			visitors, err := e.reporting.UsersWhoAccessedModule(cmd.Context(), module, submodule, roleID, from, to, limitFlag)
			if err != nil {
				return fmt.Errorf("users by module: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d users accessed %s between %s and %s\n",
				len(visitors), module, from.Format("2006-01-02"), to.Format("2006-01-02"))
			for _, v := range visitors {
				fmt.Fprintf(out, "  %s  %4d endpoints %6d visits  last seen %s\n",
					v.UserID, v.UniqueEndpoints, v.TotalVisits, v.LastAccess.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&roleFlag, "role", "", "filter by role id")
	cmd.Flags().StringVar(&fromFlag, "from", "", "range start (YYYY-MM-DD), defaults to 7 days ago")
	cmd.Flags().StringVar(&toFlag, "to", "", "range end (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&submoduleFlag, "submodule", "", "filter by submodule")
	cmd.Flags().IntVar(&limitFlag, "limit", 100, "maximum rows")
	return cmd
}

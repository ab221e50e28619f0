package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sphincs.io/sphincs/internal/app"
	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/notification"
)

type alertListOutput struct {
	Unread int            `json:"unread"`
	Items  []domain.Alert `json:"items"`
}

func newAlertsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List and acknowledge alerts",
	}
	cmd.AddCommand(newAlertsListCmd(e))
	cmd.AddCommand(newAlertsReadCmd(e))
	cmd.AddCommand(newAlertsReadAllCmd(e))
	return cmd
}

func newAlertsListCmd(e *env) *cobra.Command {
	var (
		limit      int
		unfiltered bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent alerts as the desk panel shows them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := e.user()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return e.withApp(ctx, func(a *app.Application) error {
				alerts := a.Notification.Center().ListRecentForUser(ctx, userID, limit)
				if !unfiltered {
					alerts, err = a.Notification.Filter().Apply(ctx, userID, alerts, domain.TargetDesktop)
					if err != nil {
						return fmt.Errorf("apply preferences: %w", err)
					}
				}
				unread := notification.CountUnread(alerts)
				if e.opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), alertListOutput{Unread: unread, Items: alerts})
				}
				renderAlerts(cmd.OutOrStdout(), alerts, unread)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of alerts")
	cmd.Flags().BoolVar(&unfiltered, "all", false, "Skip the user's notification preferences")
	return cmd
}

func newAlertsReadCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id> [id...]",
		Short: "Mark alerts as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid alert id %q", arg)
				}
				ids = append(ids, id)
			}
			ctx := cmd.Context()
			return e.withApp(ctx, func(a *app.Application) error {
				n := a.Notification.Center().MarkManyRead(ctx, ids)
				fmt.Fprintf(cmd.OutOrStdout(), "%d alert(s) marked read\n", n)
				return nil
			})
		},
	}
}

func newAlertsReadAllCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every unread alert as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return e.withApp(ctx, func(a *app.Application) error {
				n := a.Notification.Center().MarkAllRead(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "%d alert(s) marked read\n", n)
				return nil
			})
		},
	}
}

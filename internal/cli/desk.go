package cli

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"sphincs.io/sphincs/internal/app"
	"sphincs.io/sphincs/internal/desk"
)

func newDeskCmd(e *env) *cobra.Command {
	var (
		limit     int
		snoozeFor time.Duration
		live      bool
	)

	cmd := &cobra.Command{
		Use:   "desk",
		Short: "Open the terminal alert panel",
		Long:  "Open the terminal alert panel. With --live the scanner and relay run in this process, so new alerts appear as they are raised.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := e.user()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return e.withApp(ctx, func(a *app.Application) error {
				n := a.Notification
				model := desk.New(ctx, n.Center(), n.Filter(), n.Preferences(), desk.Config{
					UserID:    userID,
					Limit:     limit,
					SnoozeFor: snoozeFor,
				})
				if live {
					if err := a.Start(ctx); err != nil {
						return fmt.Errorf("start background services: %w", err)
					}
				}
				_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
				return err
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of alerts listed")
	cmd.Flags().DurationVar(&snoozeFor, "snooze", 15*time.Minute, "How long the snooze-all key silences every channel")
	cmd.Flags().BoolVar(&live, "live", true, "Run the scanner in this process")
	return cmd
}

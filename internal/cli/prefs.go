package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sphincs.io/sphincs/internal/app"
	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/notification"
)

func newPrefsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show and change notification preferences",
	}
	cmd.AddCommand(newPrefsShowCmd(e))
	cmd.AddCommand(newPrefsSetCmd(e))
	return cmd
}

func newPrefsShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the user's settings for every channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := e.user()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return e.withApp(ctx, func(a *app.Application) error {
				prefs := a.Notification.Preferences()
				rows, err := prefs.ForUser(ctx, userID)
				if err != nil {
					return err
				}
				if e.opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), rows)
				}
				renderPreferences(cmd.OutOrStdout(), rows, prefs.Now())
				return nil
			})
		},
	}
}

func newPrefsSetCmd(e *env) *cobra.Command {
	var (
		enabled   bool
		desktop   bool
		mobile    bool
		threshold string
	)

	cmd := &cobra.Command{
		Use:   "set <channel>",
		Short: "Change one channel's settings",
		Long:  "Change one channel's settings. Only the flags given on the command line are applied.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := e.user()
			if err != nil {
				return err
			}
			module, ok := domain.ParseModule(args[0])
			if !ok {
				return fmt.Errorf("unknown channel %q (known: %s)", args[0], knownChannels())
			}

			var u notification.PreferenceUpdate
			flags := cmd.Flags()
			if flags.Changed("enabled") {
				u.IsEnabled = &enabled
			}
			if flags.Changed("desktop") {
				u.DesktopEnabled = &desktop
			}
			if flags.Changed("mobile") {
				u.MobileEnabled = &mobile
			}
			if flags.Changed("threshold") {
				sev, ok := domain.ParseSeverity(threshold)
				if !ok {
					return fmt.Errorf("unknown severity %q (want info, warning or critical)", threshold)
				}
				s := string(sev)
				u.SeverityThreshold = &s
			}
			if u == (notification.PreferenceUpdate{}) {
				return errors.New("nothing to change: pass --enabled, --threshold, --desktop or --mobile")
			}

			ctx := cmd.Context()
			return e.withApp(ctx, func(a *app.Application) error {
				prefs := a.Notification.Preferences()
				saved, err := prefs.Update(ctx, userID, module, u)
				if err != nil {
					return err
				}
				if e.opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), saved)
				}
				renderPreferences(cmd.OutOrStdout(), []domain.Preference{saved}, prefs.Now())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&enabled, "enabled", true, "Receive alerts from this channel")
	cmd.Flags().BoolVar(&desktop, "desktop", true, "Show this channel on the desk panel")
	cmd.Flags().BoolVar(&mobile, "mobile", true, "Show this channel in the mobile app")
	cmd.Flags().StringVar(&threshold, "threshold", "", "Lowest severity shown: info, warning or critical")
	return cmd
}

func newSnoozeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "snooze <duration> [channel...]",
		Short: "Silence channels for a while (all channels when none are named)",
		Example: `  sphincsctl snooze 15m
  sphincsctl snooze 2h Inventory Sales`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := e.user()
			if err != nil {
				return err
			}
			d, err := time.ParseDuration(args[0])
			if err != nil || d <= 0 {
				return fmt.Errorf("invalid snooze duration %q", args[0])
			}
			modules, err := parseChannels(args[1:])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return e.withApp(ctx, func(a *app.Application) error {
				prefs := a.Notification.Preferences()
				n, err := prefs.Snooze(ctx, userID, d, modules...)
				if err != nil {
					return err
				}
				until := prefs.Now().Add(d).Local().Format(timeLayout)
				fmt.Fprintf(cmd.OutOrStdout(), "%d channel(s) snoozed until %s\n", n, until)
				return nil
			})
		},
	}
}

func newUnsnoozeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "unsnooze [channel...]",
		Short: "Lift the snooze on channels (all channels when none are named)",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := e.user()
			if err != nil {
				return err
			}
			modules, err := parseChannels(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return e.withApp(ctx, func(a *app.Application) error {
				n, err := a.Notification.Preferences().ClearSnooze(ctx, userID, modules...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d channel(s) unsnoozed\n", n)
				return nil
			})
		},
	}
}

func parseChannels(names []string) ([]domain.Module, error) {
	out := make([]domain.Module, 0, len(names))
	for _, name := range names {
		m, ok := domain.ParseModule(name)
		if !ok {
			return nil, fmt.Errorf("unknown channel %q (known: %s)", name, knownChannels())
		}
		out = append(out, m)
	}
	return out, nil
}

func knownChannels() string {
	known := domain.KnownModules()
	names := make([]string, len(known))
	for i, m := range known {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

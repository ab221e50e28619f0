package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"sphincs.io/sphincs/internal/app"
	"sphincs.io/sphincs/internal/governance/audit"
)

func newAuditCmd(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent changes made through the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return e.withApp(ctx, func(a *app.Application) error {
				entries, err := a.Audit.Recent(ctx, limit)
				if err != nil {
					return err
				}
				if e.opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), entries)
				}
				renderAudit(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")
	return cmd
}

func renderAudit(w io.Writer, entries []audit.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no audit entries")
		return
	}
	t := newTable("WHEN", "ACTOR", "ACTION", "RESOURCE", "DETAILS")
	for _, en := range entries {
		resource := en.ResourceType
		if en.ResourceID != "" {
			resource += "/" + en.ResourceID
		}
		t.Row(en.CreatedAt.Local().Format(timeLayout), en.Actor, en.Action, resource, formatDetails(en.Details))
	}
	fmt.Fprintln(w, t)
}

func formatDetails(details map[string]any) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, details[k])
	}
	return strings.Join(parts, " ")
}

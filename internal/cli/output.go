package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/scanner"
)

const timeLayout = "2006-01-02 15:04"

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func renderAlerts(w io.Writer, alerts []domain.Alert, unread int) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, "no alerts")
		return
	}
	t := newTable("ID", "", "WHEN", "SEVERITY", "CHANNEL", "TITLE")
	for _, a := range alerts {
		mark := ""
		if !a.IsRead {
			mark = "*"
		}
		t.Row(
			strconv.FormatInt(a.ID, 10),
			mark,
			a.TriggeredAt.Local().Format(timeLayout),
			string(a.Severity),
			string(a.Module),
			a.Title,
		)
	}
	fmt.Fprintln(w, t)
	fmt.Fprintf(w, "%d unread\n", unread)
}

func renderPreferences(w io.Writer, prefs []domain.Preference, now time.Time) {
	t := newTable("CHANNEL", "ENABLED", "THRESHOLD", "DESKTOP", "MOBILE", "SNOOZED UNTIL")
	for _, p := range prefs {
		snoozed := "-"
		if p.Snoozed(now) {
			snoozed = p.SnoozedUntil.Local().Format(timeLayout)
		}
		t.Row(
			string(p.Module),
			onOff(p.IsEnabled),
			string(p.SeverityThreshold),
			onOff(p.DesktopEnabled),
			onOff(p.MobileEnabled),
			snoozed,
		)
	}
	fmt.Fprintln(w, t)
}

func renderCycle(w io.Writer, report scanner.CycleReport) {
	t := newTable("PASS", "MATCHED", "RESOLVED", "DURATION", "ERROR")
	for _, p := range report.Passes {
		t.Row(
			p.Name,
			strconv.Itoa(p.Matched),
			strconv.Itoa(p.Resolved),
			p.Duration.Round(time.Millisecond).String(),
			p.Error,
		)
	}
	fmt.Fprintln(w, t)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

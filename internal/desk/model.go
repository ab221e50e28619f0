// Package desk is the terminal alert panel used at the back-office desk.
//
// The panel lists the desktop-visible alerts for one staff member, shows an
// unread badge and lets the user mark alerts read or snooze every channel.
// Center broadcasts are consumed on the Bubble Tea event loop: a command
// waits for the subscription to become ready and hands the drained batch to
// Update, so all model state is touched from the UI loop only.
//
// Import Path: sphincs.io/sphincs/internal/desk
package desk

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/notification"
)

// SubscriberName is the bus subscriber name the panel registers under.
const SubscriberName = "desk"

const (
	defaultLimit     = 50
	defaultSnoozeFor = 15 * time.Minute
	minTableHeight   = 3
)

// AlertSource is the part of the notification center the panel drives.
type AlertSource interface {
	ListRecentForUser(ctx context.Context, userID int64, limit int) []domain.Alert
	MarkRead(ctx context.Context, id int64) bool
	MarkAllRead(ctx context.Context) int
	Subscribe(name string) *notification.Subscription
}

// Visibility applies the per-user delivery filter.
type Visibility interface {
	Apply(ctx context.Context, userID int64, alerts []domain.Alert, target domain.Target) ([]domain.Alert, error)
}

// Snoozer silences channels for a user.
type Snoozer interface {
	Snooze(ctx context.Context, userID int64, d time.Duration, modules ...domain.Module) (int, error)
}

// Config tunes a panel instance.
type Config struct {
	UserID    int64
	Limit     int
	SnoozeFor time.Duration
}

type alertsLoadedMsg struct {
	alerts []domain.Alert
	err    error
}

type busEventsMsg struct {
	events []domain.Event
}

type busClosedMsg struct{}

type actionDoneMsg struct {
	status string
	err    error
}

// Model is the Bubble Tea model of the alert panel.
type Model struct {
	ctx     context.Context
	source  AlertSource
	filter  Visibility
	snoozer Snoozer
	sub     *notification.Subscription
	cfg     Config

	keys  *KeyMap
	help  help.Model
	table table.Model

	alerts []domain.Alert
	unread int
	status string
	err    error
	width  int
}

// New creates the panel and subscribes it to the center. The subscription is
// closed when the user quits.
func New(ctx context.Context, source AlertSource, filter Visibility, snoozer Snoozer, cfg Config) Model {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.SnoozeFor <= 0 {
		cfg.SnoozeFor = defaultSnoozeFor
	}
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	return Model{
		ctx:     ctx,
		source:  source,
		filter:  filter,
		snoozer: snoozer,
		sub:     source.Subscribe(SubscriberName),
		cfg:     cfg,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		table:   t,
	}
}

// Init loads the alert list and starts listening for broadcasts.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), waitForEvents(m.sub))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.table.SetColumns(columns(msg.Width))
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(max(msg.Height-6, minTableHeight))
		return m, nil

	case alertsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.alerts = msg.alerts
		m.unread = notification.CountUnread(msg.alerts)
		m.table.SetRows(rows(msg.alerts))
		return m, nil

	case busEventsMsg:
		if created := countCreated(msg.events); created > 0 {
			m.status = fmt.Sprintf("%d new alert(s)", created)
		}
		return m, tea.Batch(m.load(), waitForEvents(m.sub))

	case busClosedMsg:
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.status = msg.status
		return m, m.load()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.sub.Close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.MarkRead):
			a, ok := m.selected()
			if !ok {
				return m, nil
			}
			return m, m.markRead(a.ID)
		case key.Matches(msg, m.keys.MarkAllRead):
			return m, m.markAllRead()
		case key.Matches(msg, m.keys.SnoozeAll):
			return m, m.snoozeAll()
		case key.Matches(msg, m.keys.Refresh):
			m.status = ""
			return m, m.load()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the panel.
func (m Model) View() string {
	badge := quietBadgeStyle.Render("no unread")
	if m.unread > 0 {
		badge = badgeStyle.Render(fmt.Sprintf("%d unread", m.unread))
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, headerStyle.Render("Sphincs alerts"), " ", badge)

	var body string
	switch {
	case m.err != nil:
		body = errorStyle.Render("error: " + m.err.Error())
	case len(m.alerts) == 0:
		body = dimmedStyle.Render("No alerts to show.")
	default:
		body = m.table.View()
	}

	parts := []string{header, "", body, ""}
	if m.status != "" {
		parts = append(parts, statusBarStyle.Render(m.status))
	}
	parts = append(parts, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Unread returns the badge count.
func (m Model) Unread() int { return m.unread }

// Alerts returns the alerts currently listed.
func (m Model) Alerts() []domain.Alert { return m.alerts }

func (m Model) selected() (domain.Alert, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.alerts) {
		return domain.Alert{}, false
	}
	return m.alerts[i], true
}

func (m Model) load() tea.Cmd {
	ctx, source, filter, cfg := m.ctx, m.source, m.filter, m.cfg
	return func() tea.Msg {
		alerts := source.ListRecentForUser(ctx, cfg.UserID, cfg.Limit)
		visible, err := filter.Apply(ctx, cfg.UserID, alerts, domain.TargetDesktop)
		return alertsLoadedMsg{alerts: visible, err: err}
	}
}

func (m Model) markRead(id int64) tea.Cmd {
	ctx, source := m.ctx, m.source
	return func() tea.Msg {
		if !source.MarkRead(ctx, id) {
			return actionDoneMsg{status: fmt.Sprintf("alert %d already read", id)}
		}
		return actionDoneMsg{status: fmt.Sprintf("alert %d marked read", id)}
	}
}

func (m Model) markAllRead() tea.Cmd {
	ctx, source := m.ctx, m.source
	return func() tea.Msg {
		n := source.MarkAllRead(ctx)
		return actionDoneMsg{status: fmt.Sprintf("%d alert(s) marked read", n)}
	}
}

func (m Model) snoozeAll() tea.Cmd {
	ctx, snoozer, cfg := m.ctx, m.snoozer, m.cfg
	return func() tea.Msg {
		n, err := snoozer.Snooze(ctx, cfg.UserID, cfg.SnoozeFor)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: fmt.Sprintf("%d channel(s) snoozed for %s", n, cfg.SnoozeFor)}
	}
}

// waitForEvents blocks until the subscription has events and returns the
// whole drained batch as one message.
func waitForEvents(sub *notification.Subscription) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-sub.Ready():
			return busEventsMsg{events: sub.Drain()}
		case <-sub.Done():
			return busClosedMsg{}
		}
	}
}

func countCreated(events []domain.Event) int {
	n := 0
	for _, ev := range events {
		if ev.Type == domain.EventAlertCreated {
			n++
		}
	}
	return n
}

func columns(width int) []table.Column {
	title := max(width-44, 20)
	return []table.Column{
		{Title: "", Width: 1},
		{Title: "When", Width: 12},
		{Title: "Sev", Width: 4},
		{Title: "Channel", Width: 10},
		{Title: "Title", Width: title},
	}
}

func rows(alerts []domain.Alert) []table.Row {
	out := make([]table.Row, 0, len(alerts))
	for _, a := range alerts {
		mark := " "
		if !a.IsRead {
			mark = "●"
		}
		out = append(out, table.Row{
			mark,
			a.TriggeredAt.Local().Format("Jan 02 15:04"),
			severityLabel(a.Severity),
			string(a.Module),
			a.Title,
		})
	}
	return out
}

func severityLabel(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return "CRIT"
	case domain.SeverityWarning:
		return "WARN"
	default:
		return "INFO"
	}
}

package desk

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/notification"
	"sphincs.io/sphincs/internal/repository"
	"sphincs.io/sphincs/internal/testutil"
)

var t0 = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

const staffID int64 = 7

type harness struct {
	center *notification.Center
	prefs  *notification.Preferences
	filter *notification.Filter
}

func newHarness(t *testing.T) harness {
	t.Helper()
	db := testutil.OpenSQLite(t)
	clock := func() time.Time { return t0 }
	prefs := notification.NewPreferences(repository.NewPreferenceRepository(db), clock)
	return harness{
		center: notification.NewCenter(repository.NewAlertRepository(db), notification.NewBroadcaster(16), clock),
		prefs:  prefs,
		filter: notification.NewFilter(prefs),
	}
}

func (h harness) emit(t *testing.T, id int64, title string) {
	t.Helper()
	a := h.center.Emit(context.Background(), notification.EmitParams{
		Module:   domain.ModuleInventory,
		Title:    title,
		Message:  title,
		Severity: domain.SeverityWarning,
		Source:   &domain.Source{Type: domain.SourceInventoryLow, ID: id},
	})
	require.NotNil(t, a)
}

func (h harness) model() Model {
	return New(context.Background(), h.center, h.filter, h.prefs, Config{UserID: staffID})
}

// step applies msg and returns the updated model plus the resulting command.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_LoadShowsVisibleAlertsAndBadge(t *testing.T) {
	h := newHarness(t)
	h.emit(t, 1, "Flour below reorder level")
	h.emit(t, 2, "Sugar below reorder level")

	m := h.model()
	require.NotNil(t, m.Init())

	m, _ = step(t, m, m.load()())
	require.Len(t, m.Alerts(), 2)
	require.Equal(t, 2, m.Unread())

	view := m.View()
	require.Contains(t, view, "2 unread")
	require.Contains(t, view, "Flour below reorder level")
}

func TestModel_MarkReadSelected(t *testing.T) {
	h := newHarness(t)
	h.emit(t, 1, "Flour below reorder level")
	h.emit(t, 2, "Sugar below reorder level")

	m := h.model()
	m, _ = step(t, m, m.load()())

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	done := cmd()
	require.IsType(t, actionDoneMsg{}, done)

	m, reload := step(t, m, done)
	require.Contains(t, m.status, "marked read")
	require.NotNil(t, reload)

	m, _ = step(t, m, reload())
	require.Equal(t, 1, m.Unread())
	require.Len(t, m.Alerts(), 2)
}

func TestModel_MarkAllRead(t *testing.T) {
	h := newHarness(t)
	h.emit(t, 1, "Flour below reorder level")
	h.emit(t, 2, "Sugar below reorder level")

	m := h.model()
	m, _ = step(t, m, m.load()())

	m, cmd := step(t, m, keyPress("A"))
	m, reload := step(t, m, cmd())
	require.Equal(t, "2 alert(s) marked read", m.status)

	m, _ = step(t, m, reload())
	require.Zero(t, m.Unread())
	require.Contains(t, m.View(), "no unread")
}

func TestModel_SnoozeAllHidesEverything(t *testing.T) {
	h := newHarness(t)
	h.emit(t, 1, "Flour below reorder level")

	m := h.model()
	m, _ = step(t, m, m.load()())
	require.Len(t, m.Alerts(), 1)

	m, cmd := step(t, m, keyPress("s"))
	m, reload := step(t, m, cmd())
	require.Contains(t, m.status, "snoozed for 15m0s")

	m, _ = step(t, m, reload())
	require.Empty(t, m.Alerts())
	require.Contains(t, m.View(), "No alerts to show.")
}

func TestModel_BusEventsTriggerReload(t *testing.T) {
	h := newHarness(t)
	m := h.model()
	m, _ = step(t, m, m.load()())
	require.Empty(t, m.Alerts())

	h.emit(t, 3, "Butter expires tomorrow")

	msg := waitForEvents(m.sub)()
	events, ok := msg.(busEventsMsg)
	require.True(t, ok)
	require.Len(t, events.events, 1)
	require.Equal(t, domain.EventAlertCreated, events.events[0].Type)

	m, cmd := step(t, m, events)
	require.Equal(t, "1 new alert(s)", m.status)
	require.NotNil(t, cmd)

	m, _ = step(t, m, m.load()())
	require.Len(t, m.Alerts(), 1)
	require.Equal(t, 1, m.Unread())
}

func TestModel_QuitClosesSubscription(t *testing.T) {
	h := newHarness(t)
	m := h.model()

	m, cmd := step(t, m, keyPress("q"))
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())

	select {
	case <-m.sub.Done():
	default:
		t.Fatal("subscription still open after quit")
	}
	require.IsType(t, busClosedMsg{}, waitForEvents(m.sub)())
}

type failingFilter struct{}

func (failingFilter) Apply(context.Context, int64, []domain.Alert, domain.Target) ([]domain.Alert, error) {
	return nil, errors.New("preferences unavailable")
}

func TestModel_FilterErrorIsShown(t *testing.T) {
	h := newHarness(t)
	h.emit(t, 1, "Flour below reorder level")

	m := New(context.Background(), h.center, failingFilter{}, h.prefs, Config{UserID: staffID})
	m, _ = step(t, m, m.load()())
	require.Contains(t, m.View(), "error: preferences unavailable")
}

func TestModel_WindowSize(t *testing.T) {
	h := newHarness(t)
	m := h.model()

	m, cmd := step(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	require.Nil(t, cmd)
	require.Equal(t, 120, m.width)
	require.Equal(t, 120, m.help.Width)
}

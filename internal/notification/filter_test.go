package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/notification"
)

var severities = []domain.Severity{domain.SeverityInfo, domain.SeverityWarning, domain.SeverityCritical}

var targets = []domain.Target{domain.TargetDesktop, domain.TargetMobile}

func TestIsAllowed(t *testing.T) {
	future := t0.Add(time.Hour)
	past := t0.Add(-time.Hour)

	tests := []struct {
		name     string
		mutate   func(p *domain.Preference)
		severity domain.Severity
		target   domain.Target
		want     bool
	}{
		{name: "defaults pass info", severity: domain.SeverityInfo, target: domain.TargetDesktop, want: true},
		{name: "disabled channel", mutate: func(p *domain.Preference) { p.IsEnabled = false }, severity: domain.SeverityCritical, target: domain.TargetDesktop},
		{name: "snoozed channel", mutate: func(p *domain.Preference) { p.SnoozedUntil = &future }, severity: domain.SeverityCritical, target: domain.TargetMobile},
		{name: "expired snooze", mutate: func(p *domain.Preference) { p.SnoozedUntil = &past }, severity: domain.SeverityInfo, target: domain.TargetMobile, want: true},
		{name: "desktop off", mutate: func(p *domain.Preference) { p.DesktopEnabled = false }, severity: domain.SeverityCritical, target: domain.TargetDesktop},
		{name: "desktop off mobile still on", mutate: func(p *domain.Preference) { p.DesktopEnabled = false }, severity: domain.SeverityInfo, target: domain.TargetMobile, want: true},
		{name: "mobile off", mutate: func(p *domain.Preference) { p.MobileEnabled = false }, severity: domain.SeverityCritical, target: domain.TargetMobile},
		{name: "below threshold", mutate: func(p *domain.Preference) { p.SeverityThreshold = domain.SeverityCritical }, severity: domain.SeverityWarning, target: domain.TargetDesktop},
		{name: "at threshold", mutate: func(p *domain.Preference) { p.SeverityThreshold = domain.SeverityWarning }, severity: domain.SeverityWarning, target: domain.TargetDesktop, want: true},
		{name: "unknown target", severity: domain.SeverityCritical, target: "watch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.DefaultPreference(1, domain.ModuleInventory)
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			require.Equal(t, tt.want, notification.IsAllowed(p, tt.severity, tt.target, t0))
		})
	}
}

func TestIsAllowed_MonotonicInSeverity(t *testing.T) {
	for _, threshold := range severities {
		for _, desktop := range []bool{true, false} {
			for _, target := range targets {
				p := domain.DefaultPreference(1, domain.ModuleSales)
				p.SeverityThreshold = threshold
				p.DesktopEnabled = desktop
				for i, low := range severities {
					for _, high := range severities[i:] {
						if notification.IsAllowed(p, low, target, t0) {
							require.True(t, notification.IsAllowed(p, high, target, t0),
								"threshold=%s target=%s low=%s high=%s", threshold, target, low, high)
						}
					}
				}
			}
		}
	}
}

func TestIsAllowed_SnoozeDominates(t *testing.T) {
	until := t0.Add(time.Minute)
	for _, threshold := range severities {
		p := domain.DefaultPreference(1, domain.ModuleSafety)
		p.SeverityThreshold = threshold
		p.SnoozedUntil = &until
		for _, sev := range severities {
			for _, target := range targets {
				require.False(t, notification.IsAllowed(p, sev, target, t0))
			}
		}
	}
}

func TestFilterWith_FailsOpenForUnconfiguredModule(t *testing.T) {
	prefs := []domain.Preference{
		func() domain.Preference {
			p := domain.DefaultPreference(1, domain.ModuleInventory)
			p.IsEnabled = false
			return p
		}(),
	}
	alerts := []domain.Alert{
		{ID: 1, Module: domain.ModuleInventory, Severity: domain.SeverityCritical},
		{ID: 2, Module: "Payroll", Severity: domain.SeverityInfo},
		{ID: 3, Module: domain.ModuleSales, Severity: domain.SeverityInfo, IsRead: true},
	}

	got := notification.FilterWith(prefs, alerts, domain.TargetMobile, t0)
	require.Equal(t, []int64{2, 3}, alertIDs(got))
	require.Equal(t, 1, notification.CountUnread(got))
}

func TestFilter_CriticalThresholdHidesWarningOnDesktop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := int64(11)

	threshold := "critical"
	_, err := f.prefs.Update(ctx, user, domain.ModuleInventory, notification.PreferenceUpdate{SeverityThreshold: &threshold})
	require.NoError(t, err)

	warning := f.center.Emit(ctx, lowStock(5))
	critical := f.center.Emit(ctx, notification.ExpiredBatchAlert(domain.ExpiryBatch{BatchID: 9, ItemName: "Milk", ExpiryDate: t0.Add(-time.Hour)}))
	require.NotNil(t, warning)
	require.NotNil(t, critical)

	filter := notification.NewFilter(f.prefs)
	got, err := filter.Apply(ctx, user, f.center.ListRecent(ctx, 10), domain.TargetDesktop)
	require.NoError(t, err)
	require.Equal(t, []int64{critical.ID}, alertIDs(got))
}

func TestFilter_SnoozeAllForFifteenMinutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := int64(12)
	filter := notification.NewFilter(f.prefs)

	n, err := f.prefs.Snooze(ctx, user, 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, len(domain.KnownModules()), n)

	emitted := []*domain.Alert{
		f.center.Emit(ctx, lowStock(1)),
		f.center.Emit(ctx, notification.IncidentAlert(domain.SafetyIncident{IncidentID: 2, Title: "Burn", Severity: "critical", Status: "open"})),
		f.center.Emit(ctx, notification.PendingOrderAlert(domain.PendingOrder{OrderID: 3, OrderNumber: "A-3", Status: "pending"})),
	}
	for _, a := range emitted {
		require.NotNil(t, a)
	}

	for _, offset := range []time.Duration{0, 5 * time.Minute, 15*time.Minute - time.Second} {
		f.clock.Set(t0.Add(offset))
		for _, target := range targets {
			got, err := filter.Apply(ctx, user, f.center.ListRecent(ctx, 10), target)
			require.NoError(t, err)
			require.Empty(t, got, "offset %s target %s", offset, target)
		}
	}

	f.clock.Set(t0.Add(16 * time.Minute))
	for _, target := range targets {
		got, err := filter.Apply(ctx, user, f.center.ListRecent(ctx, 10), target)
		require.NoError(t, err)
		require.Len(t, got, 3)
		require.Equal(t, 3, notification.CountUnread(got))
	}
}

package notification

import (
	"context"
	"time"

	"sphincs.io/sphincs/internal/domain"
)

// IsAllowed decides whether an alert of severity may be shown on target
// under pref at time now.
//
// A disabled channel, an active snooze or a disabled surface hide the alert
// outright. Otherwise the severity must reach the channel threshold.
func IsAllowed(pref domain.Preference, severity domain.Severity, target domain.Target, now time.Time) bool {
	if !pref.IsEnabled {
		return false
	}
	if pref.Snoozed(now) {
		return false
	}
	if !pref.SurfaceEnabled(target) {
		return false
	}
	return severity.AtLeast(pref.SeverityThreshold)
}

// Filter applies a user's channel preferences to alert lists.
type Filter struct {
	prefs *Preferences
}

// NewFilter creates a delivery filter.
func NewFilter(prefs *Preferences) *Filter {
	return &Filter{prefs: prefs}
}

// Apply keeps the alerts the user should see on target, preserving order.
// Alerts for a channel the user has no preference for are kept.
func (f *Filter) Apply(ctx context.Context, userID int64, alerts []domain.Alert, target domain.Target) ([]domain.Alert, error) {
	prefs, err := f.prefs.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FilterWith(prefs, alerts, target, f.prefs.Now()), nil
}

// FilterWith is Apply over an already loaded preference set.
func FilterWith(prefs []domain.Preference, alerts []domain.Alert, target domain.Target, now time.Time) []domain.Alert {
	byModule := make(map[domain.Module]domain.Preference, len(prefs))
	for _, p := range prefs {
		byModule[p.Module] = p
	}

	out := make([]domain.Alert, 0, len(alerts))
	for _, a := range alerts {
		pref, ok := byModule[a.Module]
		if !ok || IsAllowed(pref, a.Severity, target, now) {
			out = append(out, a)
		}
	}
	return out
}

// CountUnread counts unread alerts in a filtered list.
func CountUnread(alerts []domain.Alert) int {
	n := 0
	for _, a := range alerts {
		if !a.IsRead {
			n++
		}
	}
	return n
}

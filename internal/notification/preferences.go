package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/pkg/logger"
)

// ErrUnknownModule is returned when a preference call names a channel that
// does not exist.
var ErrUnknownModule = errors.New("unknown notification channel")

// PreferenceStore is the persistence the preference service needs.
type PreferenceStore interface {
	EnsureDefaults(ctx context.Context, userID int64, modules []domain.Module, now time.Time) error
	ListForUser(ctx context.Context, userID int64) ([]domain.Preference, error)
	Save(ctx context.Context, p domain.Preference) error
	SetSnooze(ctx context.Context, userID int64, modules []domain.Module, until *time.Time, now time.Time) (int, error)
}

// PreferenceUpdate carries the fields a settings action changes. Nil fields
// keep their current value.
type PreferenceUpdate struct {
	IsEnabled         *bool   `json:"is_enabled,omitempty"`
	SeverityThreshold *string `json:"severity_threshold,omitempty"`
	DesktopEnabled    *bool   `json:"desktop_enabled,omitempty"`
	MobileEnabled     *bool   `json:"mobile_enabled,omitempty"`
}

// Preferences reads and changes per-user channel settings. Every user gets
// a row per known module the first time their preferences are touched.
type Preferences struct {
	store PreferenceStore
	clock Clock
}

// NewPreferences creates the preference service.
func NewPreferences(store PreferenceStore, clock Clock) *Preferences {
	return &Preferences{store: store, clock: clock}
}

// Now returns the service's notion of the current time.
func (p *Preferences) Now() time.Time { return p.clock.now() }

// ForUser returns one preference per known module, creating defaults for
// any that are missing.
func (p *Preferences) ForUser(ctx context.Context, userID int64) ([]domain.Preference, error) {
	if err := p.store.EnsureDefaults(ctx, userID, domain.KnownModules(), p.Now()); err != nil {
		return nil, fmt.Errorf("ensure default preferences: %w", err)
	}
	prefs, err := p.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return prefs, nil
}

// Update applies u to the user's row for module and returns the saved row.
// An unrecognized severity token leaves the current threshold in place.
func (p *Preferences) Update(ctx context.Context, userID int64, module domain.Module, u PreferenceUpdate) (domain.Preference, error) {
	canonical, ok := domain.ParseModule(string(module))
	if !ok {
		return domain.Preference{}, fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}
	module = canonical
	prefs, err := p.ForUser(ctx, userID)
	if err != nil {
		return domain.Preference{}, err
	}

	current := domain.DefaultPreference(userID, module)
	for _, pref := range prefs {
		if pref.Module == module {
			current = pref
			break
		}
	}

	if u.IsEnabled != nil {
		current.IsEnabled = *u.IsEnabled
	}
	if u.DesktopEnabled != nil {
		current.DesktopEnabled = *u.DesktopEnabled
	}
	if u.MobileEnabled != nil {
		current.MobileEnabled = *u.MobileEnabled
	}
	if u.SeverityThreshold != nil {
		if sev, ok := domain.ParseSeverity(*u.SeverityThreshold); ok {
			current.SeverityThreshold = sev
		} else {
			logger.Warn("ignoring unknown severity threshold",
				zap.Int64("user_id", userID),
				zap.String("module", string(module)),
				zap.String("severity", *u.SeverityThreshold),
			)
		}
	}
	current.UpdatedAt = p.Now()

	if err := p.store.Save(ctx, current); err != nil {
		return domain.Preference{}, fmt.Errorf("save preference: %w", err)
	}
	return current, nil
}

// Snooze suppresses the named channels (all channels when none are named)
// until now+d. Returns the number of channels snoozed.
func (p *Preferences) Snooze(ctx context.Context, userID int64, d time.Duration, modules ...domain.Module) (int, error) {
	if d <= 0 {
		return 0, fmt.Errorf("snooze duration must be positive, got %s", d)
	}
	until := p.Now().Add(d)
	return p.setSnooze(ctx, userID, &until, modules)
}

// ClearSnooze lifts the snooze on the named channels, or on all channels.
func (p *Preferences) ClearSnooze(ctx context.Context, userID int64, modules ...domain.Module) (int, error) {
	return p.setSnooze(ctx, userID, nil, modules)
}

func (p *Preferences) setSnooze(ctx context.Context, userID int64, until *time.Time, modules []domain.Module) (int, error) {
	canonical := domain.KnownModules()
	if len(modules) > 0 {
		canonical = make([]domain.Module, 0, len(modules))
		for _, m := range modules {
			parsed, ok := domain.ParseModule(string(m))
			if !ok {
				return 0, fmt.Errorf("%w: %s", ErrUnknownModule, m)
			}
			canonical = append(canonical, parsed)
		}
	}
	if err := p.store.EnsureDefaults(ctx, userID, domain.KnownModules(), p.Now()); err != nil {
		return 0, fmt.Errorf("ensure default preferences: %w", err)
	}
	n, err := p.store.SetSnooze(ctx, userID, canonical, until, p.Now())
	if err != nil {
		return 0, fmt.Errorf("update snooze: %w", err)
	}
	return n, nil
}

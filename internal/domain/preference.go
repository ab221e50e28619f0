package domain

import "time"

// Preference holds one user's settings for one channel.
type Preference struct {
	UserID            int64      `json:"user_id"`
	Module            Module     `json:"module"`
	IsEnabled         bool       `json:"is_enabled"`
	SeverityThreshold Severity   `json:"severity_threshold"`
	DesktopEnabled    bool       `json:"desktop_enabled"`
	MobileEnabled     bool       `json:"mobile_enabled"`
	SnoozedUntil      *time.Time `json:"snoozed_until,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DefaultPreference is the row lazily created for a user/channel pair:
// enabled, info threshold, both surfaces on, no snooze.
func DefaultPreference(userID int64, module Module) Preference {
	return Preference{
		UserID:            userID,
		Module:            module,
		IsEnabled:         true,
		SeverityThreshold: SeverityInfo,
		DesktopEnabled:    true,
		MobileEnabled:     true,
	}
}

// Snoozed reports whether the channel is suppressed at now.
func (p Preference) Snoozed(now time.Time) bool {
	return p.SnoozedUntil != nil && p.SnoozedUntil.After(now)
}

// SurfaceEnabled reports whether the given target is switched on.
func (p Preference) SurfaceEnabled(target Target) bool {
	switch target {
	case TargetDesktop:
		return p.DesktopEnabled
	case TargetMobile:
		return p.MobileEnabled
	default:
		return false
	}
}

package domain

import "time"

// EventType defines the kind of change the notification center broadcasts.
type EventType string

const (
	// EventAlertCreated carries the full newly persisted alert.
	EventAlertCreated EventType = "ALERT_CREATED"
	// EventAlertUpdated carries one alert whose read state changed.
	EventAlertUpdated EventType = "ALERT_UPDATED"
	// EventAlertsRefresh signals a bulk change; subscribers should re-read.
	EventAlertsRefresh EventType = "ALERTS_REFRESH"
)

// Event is a single broadcast from the notification center.
type Event struct {
	Type  EventType `json:"type"`
	Alert *Alert    `json:"alert,omitempty"`
	Count int       `json:"count,omitempty"`
	At    time.Time `json:"at"`
}

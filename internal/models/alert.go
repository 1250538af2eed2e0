package models

import "time"

type AlertStatus string

const (
	AlertStatusSent   AlertStatus = "sent"
	AlertStatusFailed AlertStatus = "failed"
)

// Alert records one community alert dispatch for a disaster at a given
// escalation tier. At most one alert per (disaster, tier) ever reaches
// status sent.
type Alert struct {
	ID         string
	DisasterID string
	Tier       int
	MessageEN  string
	MessageSW  string
	Truncated  bool // true when an over-length AI message was cut at a word boundary
	Recipients int
	Retries    int
	Status     AlertStatus
	SentAt     time.Time // zero when delivery failed
}

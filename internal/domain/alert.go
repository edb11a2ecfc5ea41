package domain

import "time"

// AlertType enumerates fleet health conditions raised by the SLA monitor.
type AlertType string

const (
	AlertBacklogHigh      AlertType = "backlog_high"
	AlertSLAWarning       AlertType = "sla_warning"
	AlertSLAViolation     AlertType = "sla_violation"
	AlertHelperOverloaded AlertType = "helper_overloaded"
)

// AlertSeverity orders alerts by urgency.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// Alert is an ephemeral fleet-health signal. It is broadcast to the admin
// channel and never persisted.
type Alert struct {
	Type      AlertType     `json:"type"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	Severity  AlertSeverity `json:"severity"`
	Count     int           `json:"count"`
	Timestamp time.Time     `json:"timestamp"`
}

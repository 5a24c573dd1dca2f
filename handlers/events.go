package handlers

import "time"

// StatusEvent is broadcast on the status topic for every StatusNotification.
type StatusEvent struct {
	ConnectorId     int       `json:"connector_id"`
	Status          string    `json:"status"`
	ErrorCode       string    `json:"error_code"`
	Info            string    `json:"info,omitempty"`
	VendorId        string    `json:"vendor_id,omitempty"`
	VendorErrorCode string    `json:"vendor_error_code,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// MeterValueEvent is broadcast on the meter values topic for each stored reading.
type MeterValueEvent struct {
	ConnectorId   int       `json:"connector_id"`
	TransactionId *int      `json:"transaction_id,omitempty"`
	Measurand     string    `json:"measurand"`
	Value         string    `json:"value"`
	Unit          string    `json:"unit"`
	Phase         string    `json:"phase,omitempty"`
	Context       string    `json:"context"`
	Timestamp     time.Time `json:"timestamp"`
}

const (
	SessionStarted = "started"
	SessionStopped = "stopped"
)

type SessionEvent struct {
	Event   string        `json:"event"`
	Session *SessionState `json:"session"`
}

type SessionState struct {
	Id             int        `json:"id"`
	ConnectorId    int        `json:"connector_id"`
	IdTag          string     `json:"id_tag,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	MeterStart     int        `json:"start_meter_value"`
	StoppedAt      *time.Time `json:"stopped_at,omitempty"`
	EnergyConsumed int        `json:"energy_consumed,omitempty"`
	Duration       int64      `json:"duration_seconds,omitempty"`
	Reason         string     `json:"stop_reason,omitempty"`
}

package entity

import (
	"math"
	"time"
)

const (
	TransactionStatusActive    = "Active"
	TransactionStatusCompleted = "Completed"
)

// Transaction one charging session on a connector, bounded by Start/StopTransaction.
type Transaction struct {
	Id             int       `json:"transaction_id" bson:"transaction_id"`
	ChargePointId  string    `json:"charge_point_id" bson:"charge_point_id"`
	ConnectorId    int       `json:"connector_id" bson:"connector_id"`
	IdTag          string    `json:"id_tag" bson:"id_tag"`
	ReservationId  *int      `json:"reservation_id,omitempty" bson:"reservation_id,omitempty"`
	Status         string    `json:"status" bson:"status"`
	MeterStart     int       `json:"meter_start" bson:"meter_start"`
	MeterStop      int       `json:"meter_stop" bson:"meter_stop"`
	EnergyConsumed int       `json:"energy_consumed" bson:"energy_consumed"`
	TimeStart      time.Time `json:"time_start" bson:"time_start"`
	TimeStop       time.Time `json:"time_stop" bson:"time_stop"`
	Duration       int64     `json:"duration" bson:"duration"`
	Reason         string    `json:"reason" bson:"reason"`
}

func (t *Transaction) IsActive() bool {
	return t.Status == TransactionStatusActive
}

// Stop closes the session. Energy is the plain meter difference and duration is
// counted in whole seconds.
func (t *Transaction) Stop(meterStop int, reason string, stoppedAt time.Time) {
	if reason == "" {
		reason = "Local"
	}
	t.MeterStop = meterStop
	t.Reason = reason
	t.TimeStop = stoppedAt
	t.EnergyConsumed = meterStop - t.MeterStart
	t.Duration = int64(math.Floor(stoppedAt.Sub(t.TimeStart).Seconds()))
	t.Status = TransactionStatusCompleted
}

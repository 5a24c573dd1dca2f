package entity

import "time"

type MeterValue struct {
	ChargePointId string    `json:"charge_point_id" bson:"charge_point_id"`
	ConnectorId   int       `json:"connector_id" bson:"connector_id"`
	TransactionId *int      `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	Value         string    `json:"value" bson:"value"`
	Measurand     string    `json:"measurand" bson:"measurand"`
	Unit          string    `json:"unit" bson:"unit"`
	Context       string    `json:"context" bson:"context"`
	Format        string    `json:"format" bson:"format"`
	Location      string    `json:"location" bson:"location"`
	Phase         string    `json:"phase,omitempty" bson:"phase,omitempty"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
}

package entity

import "time"

// Connector per-socket state; Id 0 is never stored, the charge point itself carries that status.
type Connector struct {
	ChargePointId   string    `json:"charge_point_id" bson:"charge_point_id"`
	Id              int       `json:"connector_id" bson:"connector_id"`
	Status          string    `json:"status" bson:"status"`
	ErrorCode       string    `json:"error_code" bson:"error_code"`
	Info            string    `json:"info" bson:"info"`
	VendorId        string    `json:"vendor_id" bson:"vendor_id"`
	VendorErrorCode string    `json:"vendor_error_code" bson:"vendor_error_code"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

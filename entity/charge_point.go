package entity

import "time"

type ChargePoint struct {
	Id                    string    `json:"charge_point_id" bson:"charge_point_id"`
	IsEnabled             bool      `json:"is_enabled" bson:"is_enabled"`
	Title                 string    `json:"title" bson:"title"`
	Vendor                string    `json:"vendor" bson:"vendor"`
	Model                 string    `json:"model" bson:"model"`
	SerialNumber          string    `json:"serial_number" bson:"serial_number"`
	ChargeBoxSerialNumber string    `json:"charge_box_serial_number" bson:"charge_box_serial_number"`
	FirmwareVersion       string    `json:"firmware_version" bson:"firmware_version"`
	Iccid                 string    `json:"iccid" bson:"iccid"`
	Imsi                  string    `json:"imsi" bson:"imsi"`
	MeterType             string    `json:"meter_type" bson:"meter_type"`
	MeterSerialNumber     string    `json:"meter_serial_number" bson:"meter_serial_number"`
	Status                string    `json:"status" bson:"status"`
	ErrorCode             string    `json:"error_code" bson:"error_code"`
	Info                  string    `json:"info" bson:"info"`
	IsConnected           bool      `json:"is_connected" bson:"is_connected"`
	LastHeartbeat         time.Time `json:"last_heartbeat" bson:"last_heartbeat"`
	EventTime             time.Time `json:"event_time" bson:"event_time"`
}

func NewChargePoint(id string) *ChargePoint {
	return &ChargePoint{
		Id:        id,
		IsEnabled: true,
		Status:    "Available",
		EventTime: time.Now(),
	}
}

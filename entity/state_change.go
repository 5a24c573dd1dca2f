package entity

import (
	"strconv"
	"time"
)

const (
	ChangeTypeStatus     = "status"
	ChangeTypeConnection = "connection"
)

type StateChange struct {
	Id            string            `json:"id" bson:"id"`
	ChargePointId string            `json:"charge_point_id" bson:"charge_point_id"`
	ChangeType    string            `json:"change_type" bson:"change_type"`
	ConnectorId   *int              `json:"connector_id,omitempty" bson:"connector_id,omitempty"`
	OldValue      string            `json:"old_value" bson:"old_value"`
	NewValue      string            `json:"new_value" bson:"new_value"`
	Metadata      map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
}

func (s *StateChange) Connector() string {
	if s.ConnectorId == nil {
		return "-"
	}
	return strconv.Itoa(*s.ConnectorId)
}

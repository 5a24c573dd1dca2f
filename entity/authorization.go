package entity

import "time"

// Authorization the decision returned to one Authorize request.
type Authorization struct {
	Id            string     `json:"id" bson:"id"`
	ChargePointId string     `json:"charge_point_id" bson:"charge_point_id"`
	IdTag         string     `json:"id_tag" bson:"id_tag"`
	Status        string     `json:"status" bson:"status"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty" bson:"expiry_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
}

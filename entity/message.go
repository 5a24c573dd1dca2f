package entity

import "time"

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	MessageStatusPending  = "pending"
	MessageStatusSent     = "sent"
	MessageStatusReceived = "received"
	MessageStatusError    = "error"

	MessageTypeCall       = 2
	MessageTypeCallResult = 3
	MessageTypeCallError  = 4
)

// Message audit record of one frame. Outbound calls double as the pending request
// record while their response is awaited.
type Message struct {
	ChargePointId    string    `json:"charge_point_id" bson:"charge_point_id"`
	MessageId        string    `json:"message_id" bson:"message_id"`
	Direction        string    `json:"direction" bson:"direction"`
	MessageType      int       `json:"message_type" bson:"message_type"`
	Action           string    `json:"action" bson:"action"`
	Payload          string    `json:"payload" bson:"payload"`
	Status           string    `json:"status" bson:"status"`
	Response         string    `json:"response,omitempty" bson:"response,omitempty"`
	ErrorCode        string    `json:"error_code,omitempty" bson:"error_code,omitempty"`
	ErrorDescription string    `json:"error_description,omitempty" bson:"error_description,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at"`
}

func (m *Message) IsAwaitingResponse() bool {
	return m.Direction == DirectionOutbound && m.MessageType == MessageTypeCall &&
		(m.Status == MessageStatusPending || m.Status == MessageStatusSent)
}

// Advance applies a status transition, refusing to leave a terminal state or to go
// back to pending.
func (m *Message) Advance(status string) bool {
	switch m.Status {
	case MessageStatusReceived, MessageStatusError:
		return false
	case MessageStatusSent:
		if status == MessageStatusPending || status == MessageStatusSent {
			return false
		}
	}
	m.Status = status
	m.UpdatedAt = time.Now()
	return true
}

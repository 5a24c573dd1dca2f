package internal

// Topics observers can subscribe to for a charge point.
const (
	TopicStatus      = "status"
	TopicMeterValues = "meter_values"
	TopicSessions    = "sessions"
)

// MessageService delivers payloads to the observers of a charge point.
type MessageService interface {
	Broadcast(chargePointId, topic string, payload interface{}) error
}

package remotetrigger

const TriggerMessageFeatureName = "TriggerMessage"

// MessageTrigger names the charge point initiated message the central system asks for.
type MessageTrigger string

const (
	TriggerBootNotification              MessageTrigger = "BootNotification"
	TriggerDiagnosticsStatusNotification MessageTrigger = "DiagnosticsStatusNotification"
	TriggerFirmwareStatusNotification    MessageTrigger = "FirmwareStatusNotification"
	TriggerHeartbeat                     MessageTrigger = "Heartbeat"
	TriggerMeterValues                   MessageTrigger = "MeterValues"
	TriggerStatusNotification            MessageTrigger = "StatusNotification"
)

type TriggerMessageRequest struct {
	RequestedMessage MessageTrigger `json:"requestedMessage"`
	ConnectorId      *int           `json:"connectorId,omitempty"`
}

func (r TriggerMessageRequest) GetFeatureName() string {
	return TriggerMessageFeatureName
}

// NewTriggerMessageRequest a negative connectorId omits the connector from the request.
func NewTriggerMessageRequest(requestedMessage MessageTrigger, connectorId int) *TriggerMessageRequest {
	request := &TriggerMessageRequest{RequestedMessage: requestedMessage}
	if connectorId >= 0 {
		request.ConnectorId = &connectorId
	}
	return request
}

func IsValidTrigger(trigger MessageTrigger) bool {
	switch trigger {
	case TriggerBootNotification,
		TriggerDiagnosticsStatusNotification,
		TriggerFirmwareStatusNotification,
		TriggerHeartbeat,
		TriggerMeterValues,
		TriggerStatusNotification:
		return true
	}
	return false
}

package ocpp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload is returned when a call payload does not fit the feature's schema.
var ErrInvalidPayload = errors.New("invalid payload")

// Request message
type Request interface {
	// GetFeatureName Returns the unique name of the feature, to which this request belongs to.
	GetFeatureName() string
}

// Response message
type Response interface {
	// GetFeatureName Returns the unique name of the feature, to which this request belongs to.
	GetFeatureName() string
}

// ErrorCode protocol level error codes carried by a CallError.
type ErrorCode string

const (
	FormationViolation ErrorCode = "FormationViolation"
	ProtocolError      ErrorCode = "ProtocolError"
	NotSupported       ErrorCode = "NotSupported"
	InternalError      ErrorCode = "InternalError"
)

// ParsePayload decodes a raw CALL payload into the typed request of a feature.
// A missing or null payload decodes as an empty object.
func ParsePayload[T any](raw json.RawMessage) (*T, error) {
	request := new(T)
	if len(raw) == 0 || string(raw) == "null" {
		return request, nil
	}
	if err := json.Unmarshal(raw, request); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}
	return request, nil
}

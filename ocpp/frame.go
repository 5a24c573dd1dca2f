package ocpp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type CallType int

const (
	CallTypeRequest CallType = 2
	CallTypeResult  CallType = 3
	CallTypeError   CallType = 4
)

// FrameKind discriminates decoded frames, including the two non-protocol outcomes of decoding.
type FrameKind string

const (
	KindCall       FrameKind = "CALL"
	KindCallResult FrameKind = "CALLRESULT"
	KindCallError  FrameKind = "CALLERROR"
	KindUnknown    FrameKind = "UNKNOWN"
	KindParseError FrameKind = "PARSE_ERROR"
)

var emptyObject = json.RawMessage("{}")

// Frame is one decoded OCPP-J message.
type Frame interface {
	Kind() FrameKind
}

// CallRequest An OCPP-J Call message: [2, uniqueId, action, payload].
type CallRequest struct {
	UniqueId string
	Action   string
	Payload  json.RawMessage
}

// CallResult An OCPP-J CallResult message: [3, uniqueId, payload].
type CallResult struct {
	UniqueId string
	Payload  json.RawMessage
}

// CallError An OCPP-J CallError message: [4, uniqueId, errorCode, errorDescription, details].
type CallError struct {
	UniqueId         string
	ErrorCode        ErrorCode
	ErrorDescription string
	Details          json.RawMessage
}

// UnknownFrame is valid JSON whose first element is not a known message type.
type UnknownFrame struct {
	Raw json.RawMessage
}

// ParseError is input that could not be parsed as JSON at all.
type ParseError struct {
	Reason string
	Raw    []byte
}

func (*CallRequest) Kind() FrameKind  { return KindCall }
func (*CallResult) Kind() FrameKind   { return KindCallResult }
func (*CallError) Kind() FrameKind    { return KindCallError }
func (*UnknownFrame) Kind() FrameKind { return KindUnknown }
func (*ParseError) Kind() FrameKind   { return KindParseError }

func (callRequest *CallRequest) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 4)
	fields[0] = int(CallTypeRequest)
	fields[1] = callRequest.UniqueId
	fields[2] = callRequest.Action
	fields[3] = orEmpty(callRequest.Payload)
	return json.Marshal(fields)
}

func (callResult *CallResult) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 3)
	fields[0] = int(CallTypeResult)
	fields[1] = callResult.UniqueId
	fields[2] = orEmpty(callResult.Payload)
	return json.Marshal(fields)
}

func (callError *CallError) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 5)
	fields[0] = int(CallTypeError)
	fields[1] = callError.UniqueId
	fields[2] = callError.ErrorCode
	fields[3] = callError.ErrorDescription
	fields[4] = orEmpty(callError.Details)
	return json.Marshal(fields)
}

func NewCallRequest(uniqueId string, request Request) (*CallRequest, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", request.GetFeatureName(), err)
	}
	return &CallRequest{UniqueId: uniqueId, Action: request.GetFeatureName(), Payload: payload}, nil
}

func NewCallResult(uniqueId string, response Response) (*CallResult, error) {
	if response == nil {
		return &CallResult{UniqueId: uniqueId, Payload: emptyObject}, nil
	}
	payload, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("encoding %s response: %w", response.GetFeatureName(), err)
	}
	return &CallResult{UniqueId: uniqueId, Payload: payload}, nil
}

func NewCallError(uniqueId string, code ErrorCode, description string) *CallError {
	return &CallError{
		UniqueId:         uniqueId,
		ErrorCode:        code,
		ErrorDescription: description,
		Details:          emptyObject,
	}
}

// Encode serializes a Call, CallResult or CallError to its wire form.
func Encode(frame Frame) ([]byte, error) {
	switch f := frame.(type) {
	case *CallRequest:
		return f.MarshalJSON()
	case *CallResult:
		return f.MarshalJSON()
	case *CallError:
		return f.MarshalJSON()
	case nil:
		return nil, fmt.Errorf("nil frame")
	default:
		return nil, fmt.Errorf("frame of kind %s cannot be encoded", frame.Kind())
	}
}

// Decode never fails: malformed JSON yields a ParseError frame and any array whose first
// element is not exactly 2, 3 or 4 yields an UnknownFrame. Missing trailing elements
// default to an empty object.
func Decode(data []byte) Frame {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		if json.Valid(data) {
			return &UnknownFrame{Raw: copyBytes(data)}
		}
		return &ParseError{Reason: err.Error(), Raw: copyBytes(data)}
	}
	if len(fields) == 0 {
		return &UnknownFrame{Raw: copyBytes(data)}
	}
	typeId, ok := callType(fields[0])
	if !ok {
		return &UnknownFrame{Raw: copyBytes(data)}
	}
	switch typeId {
	case CallTypeRequest:
		return &CallRequest{
			UniqueId: stringElement(fields, 1),
			Action:   stringElement(fields, 2),
			Payload:  objectElement(fields, 3),
		}
	case CallTypeResult:
		return &CallResult{
			UniqueId: stringElement(fields, 1),
			Payload:  objectElement(fields, 2),
		}
	case CallTypeError:
		return &CallError{
			UniqueId:         stringElement(fields, 1),
			ErrorCode:        ErrorCode(stringElement(fields, 2)),
			ErrorDescription: stringElement(fields, 3),
			Details:          objectElement(fields, 4),
		}
	}
	return &UnknownFrame{Raw: copyBytes(data)}
}

// UniqueIdOf returns the message id carried by a protocol frame, if any.
func UniqueIdOf(frame Frame) string {
	switch f := frame.(type) {
	case *CallRequest:
		return f.UniqueId
	case *CallResult:
		return f.UniqueId
	case *CallError:
		return f.UniqueId
	}
	return ""
}

func callType(raw json.RawMessage) (CallType, bool) {
	var number float64
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0, false
	}
	switch number {
	case 2:
		return CallTypeRequest, true
	case 3:
		return CallTypeResult, true
	case 4:
		return CallTypeError, true
	}
	return 0, false
}

func element(fields []json.RawMessage, i int) json.RawMessage {
	if i >= len(fields) {
		return nil
	}
	raw := bytes.TrimSpace(fields[i])
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}

func stringElement(fields []json.RawMessage, i int) string {
	raw := element(fields, i)
	if raw == nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		return value
	}
	// non-string ids are kept in their literal form
	return string(raw)
}

func objectElement(fields []json.RawMessage, i int) json.RawMessage {
	raw := element(fields, i)
	if raw == nil {
		return emptyObject
	}
	return raw
}

func orEmpty(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return emptyObject
	}
	return raw
}

func copyBytes(data []byte) []byte {
	return append([]byte(nil), data...)
}

package server

import (
	"context"
	"errors"
	"evcentral/correlator"
	"evcentral/entity"
	"evcentral/handlers"
	"evcentral/internal"
	"evcentral/metrics/counters"
	"evcentral/ocpp"
	"evcentral/utility"
	"fmt"
	"time"
)

// Dispatcher turns one raw inbound message into at most one outbound frame.
type Dispatcher struct {
	handlers   *handlers.Registry
	correlator *correlator.Correlator
	database   internal.Database
	logger     internal.LogHandler
}

func NewDispatcher(registry *handlers.Registry, correlator *correlator.Correlator, logger internal.LogHandler) *Dispatcher {
	return &Dispatcher{
		handlers:   registry,
		correlator: correlator,
		logger:     logger,
	}
}

func (d *Dispatcher) SetDatabase(database internal.Database) {
	d.database = database
}

// Process handles a message received from a charge point and returns the encoded reply,
// or nil when nothing must be sent back. It never panics.
func (d *Dispatcher) Process(ctx context.Context, chargePointId string, data []byte) (reply []byte) {
	var callId string
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(fmt.Sprintf("processing message from %s", chargePointId), fmt.Errorf("panic: %v", r))
			reply = nil
			if callId != "" {
				reply = d.reply(chargePointId, ocpp.NewCallError(callId, ocpp.InternalError, fmt.Sprint(r)))
			}
		}
	}()

	frame := ocpp.Decode(data)
	counters.CountFrame(string(frame.Kind()))

	switch f := frame.(type) {
	case *ocpp.ParseError:
		d.logger.Warn(fmt.Sprintf("%s: malformed message: %s", chargePointId, f.Reason))
		return d.reply(chargePointId, ocpp.NewCallError(utility.NewUUID(), ocpp.FormationViolation, "invalid JSON format"))
	case *ocpp.UnknownFrame:
		d.logger.Warn(fmt.Sprintf("%s: unknown message type: %s", chargePointId, utility.Truncate(string(f.Raw), 100)))
		return d.reply(chargePointId, ocpp.NewCallError(utility.NewUUID(), ocpp.ProtocolError, "unknown message type"))
	case *ocpp.CallRequest:
		callId = f.UniqueId
		return d.reply(chargePointId, d.handleCall(ctx, chargePointId, f))
	case *ocpp.CallResult, *ocpp.CallError:
		// a response is never answered
		if !d.correlator.Resolve(chargePointId, frame) {
			d.logger.Warn(fmt.Sprintf("%s: %s for unknown message id %s", chargePointId, frame.Kind(), ocpp.UniqueIdOf(frame)))
		}
	}
	return nil
}

func (d *Dispatcher) handleCall(ctx context.Context, chargePointId string, call *ocpp.CallRequest) ocpp.Frame {
	d.logMessage(&entity.Message{
		ChargePointId: chargePointId,
		MessageId:     call.UniqueId,
		Direction:     entity.DirectionInbound,
		MessageType:   entity.MessageTypeCall,
		Action:        call.Action,
		Payload:       string(call.Payload),
		Status:        entity.MessageStatusReceived,
	})

	handler, ok := d.handlers.Lookup(call.Action)
	if !ok {
		d.logger.Warn(fmt.Sprintf("%s: action %s not supported", chargePointId, call.Action))
		return ocpp.NewCallError(call.UniqueId, ocpp.NotSupported, fmt.Sprintf("action %s not supported", call.Action))
	}
	response, err := invoke(ctx, handler, chargePointId, call)
	if errors.Is(err, ocpp.ErrInvalidPayload) {
		d.logger.Warn(fmt.Sprintf("%s: %s: %s", chargePointId, call.Action, err))
		return ocpp.NewCallError(call.UniqueId, ocpp.InternalError, err.Error())
	}
	if err != nil {
		d.logger.Error(fmt.Sprintf("%s: %s handler", chargePointId, call.Action), err)
		return ocpp.NewCallError(call.UniqueId, ocpp.InternalError, err.Error())
	}
	result, err := ocpp.NewCallResult(call.UniqueId, response)
	if err != nil {
		d.logger.Error(fmt.Sprintf("%s: %s response", chargePointId, call.Action), err)
		return ocpp.NewCallError(call.UniqueId, ocpp.InternalError, err.Error())
	}
	return result
}

func invoke(ctx context.Context, handler handlers.Handler, chargePointId string, call *ocpp.CallRequest) (response ocpp.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s handler panic: %v", call.Action, r)
		}
	}()
	return handler.Handle(ctx, chargePointId, call.Payload)
}

// reply encodes an outbound frame and records it in the message log.
func (d *Dispatcher) reply(chargePointId string, frame ocpp.Frame) []byte {
	data, err := ocpp.Encode(frame)
	if err != nil {
		d.logger.Error(fmt.Sprintf("encoding reply to %s", chargePointId), err)
		return nil
	}
	message := &entity.Message{
		ChargePointId: chargePointId,
		MessageId:     ocpp.UniqueIdOf(frame),
		Direction:     entity.DirectionOutbound,
		Status:        entity.MessageStatusSent,
	}
	switch f := frame.(type) {
	case *ocpp.CallResult:
		message.MessageType = entity.MessageTypeCallResult
		message.Payload = string(f.Payload)
	case *ocpp.CallError:
		counters.CountCallError(string(f.ErrorCode))
		message.MessageType = entity.MessageTypeCallError
		message.ErrorCode = string(f.ErrorCode)
		message.ErrorDescription = f.ErrorDescription
		message.Payload = string(f.Details)
	}
	d.logMessage(message)
	return data
}

// logMessage is best-effort; the protocol flow never depends on it.
func (d *Dispatcher) logMessage(message *entity.Message) {
	if d.database == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("message log", fmt.Errorf("panic: %v", r))
		}
	}()
	now := time.Now()
	message.CreatedAt = now
	message.UpdatedAt = now
	if err := d.database.AddMessage(message); err != nil {
		d.logger.Error(fmt.Sprintf("message log for %s", message.ChargePointId), err)
	}
}

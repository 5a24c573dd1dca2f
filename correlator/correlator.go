// Package correlator tracks server-initiated calls until the charge point answers them.
package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"evcentral/entity"
	"evcentral/internal"
	"evcentral/ocpp"
	"evcentral/utility"
	"fmt"
	"sync"
	"time"
)

var (
	ErrDuplicateId = errors.New("message id already awaiting a response")
	ErrExpired     = errors.New("no response received in time")
)

// SendFunc transmits an encoded frame to a charge point.
type SendFunc func(chargePointId string, data []byte) error

// Response is the outcome of a correlated call.
type Response struct {
	Status           string
	Payload          json.RawMessage
	ErrorCode        ocpp.ErrorCode
	ErrorDescription string
}

func (r *Response) Err() error {
	if r.Status == entity.MessageStatusReceived {
		return nil
	}
	if r.ErrorCode == "" {
		return errors.New(r.ErrorDescription)
	}
	return fmt.Errorf("%s: %s", r.ErrorCode, r.ErrorDescription)
}

// Pending is a handle to one outbound call in flight.
type Pending struct {
	ChargePointId string
	MessageId     string
	Action        string
	done          chan *Response
}

// Wait blocks until the response arrives, the record expires or ctx is done.
func (p *Pending) Wait(ctx context.Context) (*Response, error) {
	select {
	case response := <-p.done:
		return response, response.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type key struct {
	chargePointId string
	messageId     string
}

type entry struct {
	message *entity.Message
	pending *Pending
}

type Correlator struct {
	database internal.Database
	logger   internal.LogHandler
	mux      sync.Mutex
	inFlight map[key]*entry
	now      func() time.Time
}

func New(logger internal.LogHandler) *Correlator {
	return &Correlator{
		logger:   logger,
		inFlight: make(map[key]*entry),
		now:      time.Now,
	}
}

func (c *Correlator) SetDatabase(database internal.Database) {
	c.database = database
}

// Send registers the call as pending, transmits it and marks it sent. A transmission
// failure leaves the record in error state and is returned to the caller.
func (c *Correlator) Send(chargePointId string, request ocpp.Request, send SendFunc) (*Pending, error) {
	call, err := ocpp.NewCallRequest(utility.NewUUID(), request)
	if err != nil {
		return nil, err
	}
	pending, err := c.register(chargePointId, call)
	if err != nil {
		return nil, err
	}
	data, err := ocpp.Encode(call)
	if err == nil {
		err = send(chargePointId, data)
	}
	if err != nil {
		c.fail(chargePointId, call.UniqueId, err)
		return nil, fmt.Errorf("sending %s to %s: %w", call.Action, chargePointId, err)
	}
	c.transition(chargePointId, call.UniqueId, entity.MessageStatusSent, nil)
	return pending, nil
}

func (c *Correlator) register(chargePointId string, call *ocpp.CallRequest) (*Pending, error) {
	now := c.now()
	message := &entity.Message{
		ChargePointId: chargePointId,
		MessageId:     call.UniqueId,
		Direction:     entity.DirectionOutbound,
		MessageType:   entity.MessageTypeCall,
		Action:        call.Action,
		Payload:       string(call.Payload),
		Status:        entity.MessageStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	pending := &Pending{
		ChargePointId: chargePointId,
		MessageId:     call.UniqueId,
		Action:        call.Action,
		done:          make(chan *Response, 1),
	}

	c.mux.Lock()
	k := key{chargePointId, call.UniqueId}
	if _, ok := c.inFlight[k]; ok {
		c.mux.Unlock()
		return nil, ErrDuplicateId
	}
	c.inFlight[k] = &entry{message: message, pending: pending}
	c.mux.Unlock()

	if c.database != nil {
		if err := c.database.AddMessage(message); err != nil {
			c.logger.Error(fmt.Sprintf("save pending %s for %s", call.Action, chargePointId), err)
		}
	}
	return pending, nil
}

func (c *Correlator) fail(chargePointId, messageId string, err error) {
	c.transition(chargePointId, messageId, entity.MessageStatusError, &Response{
		Status:           entity.MessageStatusError,
		ErrorDescription: err.Error(),
	})
}

// Resolve matches a CallResult or CallError with the call it answers. It reports false
// for orphan responses, which are dropped.
func (c *Correlator) Resolve(chargePointId string, frame ocpp.Frame) bool {
	var response *Response
	var messageId string
	switch f := frame.(type) {
	case *ocpp.CallResult:
		messageId = f.UniqueId
		response = &Response{Status: entity.MessageStatusReceived, Payload: f.Payload}
	case *ocpp.CallError:
		messageId = f.UniqueId
		response = &Response{
			Status:           entity.MessageStatusError,
			Payload:          f.Details,
			ErrorCode:        f.ErrorCode,
			ErrorDescription: f.ErrorDescription,
		}
	default:
		return false
	}
	if c.transition(chargePointId, messageId, response.Status, response) {
		return true
	}
	return c.resolveStored(chargePointId, messageId, response)
}

// resolveStored closes a pending record that is not tracked in memory, e.g. one
// registered before a restart.
func (c *Correlator) resolveStored(chargePointId, messageId string, response *Response) bool {
	if c.database == nil {
		return false
	}
	message, err := c.database.FindPendingMessage(chargePointId, messageId)
	if err != nil {
		if !errors.Is(err, internal.ErrNotFound) {
			c.logger.Error(fmt.Sprintf("find pending %s for %s", messageId, chargePointId), err)
		}
		return false
	}
	if !message.Advance(response.Status) {
		return false
	}
	merge(message, response)
	c.save(message)
	return true
}

func (c *Correlator) transition(chargePointId, messageId, status string, response *Response) bool {
	c.mux.Lock()
	k := key{chargePointId, messageId}
	e, ok := c.inFlight[k]
	if !ok || !e.message.Advance(status) {
		c.mux.Unlock()
		return false
	}
	terminal := !e.message.IsAwaitingResponse()
	if terminal {
		delete(c.inFlight, k)
	}
	if response != nil {
		merge(e.message, response)
	}
	message := *e.message
	c.mux.Unlock()

	c.save(&message)
	if terminal && response != nil {
		e.pending.done <- response
	}
	return true
}

// ExpireStale marks calls older than maxAge as error and releases their waiters.
func (c *Correlator) ExpireStale(maxAge time.Duration) int {
	before := c.now().Add(-maxAge)
	var expired []*entry

	c.mux.Lock()
	for k, e := range c.inFlight {
		if e.message.CreatedAt.Before(before) && e.message.Advance(entity.MessageStatusError) {
			e.message.ErrorDescription = ErrExpired.Error()
			delete(c.inFlight, k)
			expired = append(expired, e)
		}
	}
	c.mux.Unlock()

	for _, e := range expired {
		c.save(e.message)
		e.pending.done <- &Response{Status: entity.MessageStatusError, ErrorDescription: ErrExpired.Error()}
	}
	count := len(expired)
	if c.database != nil {
		stored, err := c.database.ExpireMessages(before)
		if err != nil {
			c.logger.Error("expire pending messages", err)
		} else {
			count += stored
		}
	}
	return count
}

// InFlight is the number of calls still awaiting a response.
func (c *Correlator) InFlight() int {
	c.mux.Lock()
	defer c.mux.Unlock()
	return len(c.inFlight)
}

func (c *Correlator) save(message *entity.Message) {
	if c.database == nil {
		return
	}
	if err := c.database.UpdateMessage(message); err != nil {
		c.logger.Error(fmt.Sprintf("update message %s for %s", message.MessageId, message.ChargePointId), err)
	}
}

func merge(message *entity.Message, response *Response) {
	if response.Status == entity.MessageStatusReceived {
		message.Response = string(response.Payload)
		return
	}
	message.ErrorCode = string(response.ErrorCode)
	message.ErrorDescription = response.ErrorDescription
	if len(response.Payload) > 0 {
		message.Response = string(response.Payload)
	}
}

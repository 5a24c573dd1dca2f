package correlator

import (
	"context"
	"errors"
	"evcentral/entity"
	"evcentral/internal"
	"evcentral/internal/memory"
	"evcentral/ocpp"
	"evcentral/ocpp/core"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wire struct {
	sent []*ocpp.CallRequest
	err  error
}

func (w *wire) send(_ string, data []byte) error {
	if w.err != nil {
		return w.err
	}
	call, ok := ocpp.Decode(data).(*ocpp.CallRequest)
	if !ok {
		return errors.New("not a call")
	}
	w.sent = append(w.sent, call)
	return nil
}

func newCorrelator() (*Correlator, *memory.Store) {
	store := memory.NewStore()
	c := New(internal.NewNopLogger())
	c.SetDatabase(store)
	return c, store
}

func TestSendRegistersSentMessage(t *testing.T) {
	c, store := newCorrelator()
	w := &wire{}

	pending, err := c.Send("cp1", core.NewResetRequest(core.ResetTypeHard), w.send)
	require.NoError(t, err)
	require.Len(t, w.sent, 1)
	assert.Equal(t, pending.MessageId, w.sent[0].UniqueId)
	assert.Equal(t, core.ResetFeatureName, w.sent[0].Action)
	assert.JSONEq(t, `{"type":"Hard"}`, string(w.sent[0].Payload))

	messages := store.Messages("cp1")
	require.Len(t, messages, 1)
	assert.Equal(t, entity.MessageStatusSent, messages[0].Status)
	assert.Equal(t, entity.DirectionOutbound, messages[0].Direction)
	assert.Equal(t, 1, c.InFlight())
}

func TestSendFailureMarksError(t *testing.T) {
	c, store := newCorrelator()
	w := &wire{err: errors.New("connection closed")}

	_, err := c.Send("cp1", core.NewRemoteStopTransactionRequest(7), w.send)
	require.Error(t, err)

	messages := store.Messages("cp1")
	require.Len(t, messages, 1)
	assert.Equal(t, entity.MessageStatusError, messages[0].Status)
	assert.Equal(t, "connection closed", messages[0].ErrorDescription)
	assert.Equal(t, 0, c.InFlight())
}

func TestResolveResult(t *testing.T) {
	c, store := newCorrelator()
	w := &wire{}
	pending, err := c.Send("cp1", core.NewRemoteStartTransactionRequest("tag", 1), w.send)
	require.NoError(t, err)

	found := c.Resolve("cp1", &ocpp.CallResult{UniqueId: pending.MessageId, Payload: []byte(`{"status":"Accepted"}`)})
	require.True(t, found)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	response, err := pending.Wait(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"Accepted"}`, string(response.Payload))

	messages := store.Messages("cp1")
	require.Len(t, messages, 1)
	assert.Equal(t, entity.MessageStatusReceived, messages[0].Status)
	assert.JSONEq(t, `{"status":"Accepted"}`, messages[0].Response)

	// a second response for the same id is an orphan
	assert.False(t, c.Resolve("cp1", &ocpp.CallResult{UniqueId: pending.MessageId}))
}

func TestResolveCallError(t *testing.T) {
	c, store := newCorrelator()
	w := &wire{}
	pending, err := c.Send("cp1", core.NewResetRequest(core.ResetTypeSoft), w.send)
	require.NoError(t, err)

	require.True(t, c.Resolve("cp1", ocpp.NewCallError(pending.MessageId, ocpp.NotSupported, "no reset")))
	response, err := pending.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, ocpp.NotSupported, response.ErrorCode)

	messages := store.Messages("cp1")
	assert.Equal(t, entity.MessageStatusError, messages[0].Status)
	assert.Equal(t, "NotSupported", messages[0].ErrorCode)
}

func TestResolveOrphan(t *testing.T) {
	c, _ := newCorrelator()
	assert.False(t, c.Resolve("cp1", &ocpp.CallResult{UniqueId: "unknown"}))
	assert.False(t, c.Resolve("cp1", &ocpp.UnknownFrame{}))

	w := &wire{}
	pending, err := c.Send("cp1", core.NewResetRequest(core.ResetTypeSoft), w.send)
	require.NoError(t, err)
	// same id on another charge point does not match
	assert.False(t, c.Resolve("cp2", &ocpp.CallResult{UniqueId: pending.MessageId}))
}

func TestResolveStoredRecord(t *testing.T) {
	c, store := newCorrelator()
	require.NoError(t, store.AddMessage(&entity.Message{
		ChargePointId: "cp1",
		MessageId:     "old",
		Direction:     entity.DirectionOutbound,
		MessageType:   entity.MessageTypeCall,
		Status:        entity.MessageStatusSent,
		CreatedAt:     time.Now(),
	}))

	require.True(t, c.Resolve("cp1", &ocpp.CallResult{UniqueId: "old", Payload: []byte(`{}`)}))
	messages := store.Messages("cp1")
	assert.Equal(t, entity.MessageStatusReceived, messages[0].Status)
}

func TestExpireStale(t *testing.T) {
	c, store := newCorrelator()
	w := &wire{}
	pending, err := c.Send("cp1", core.NewResetRequest(core.ResetTypeSoft), w.send)
	require.NoError(t, err)

	assert.Equal(t, 0, c.ExpireStale(time.Minute))

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, 1, c.ExpireStale(time.Minute))

	_, err = pending.Wait(context.Background())
	assert.ErrorContains(t, err, ErrExpired.Error())
	assert.Equal(t, entity.MessageStatusError, store.Messages("cp1")[0].Status)
	assert.False(t, c.Resolve("cp1", &ocpp.CallResult{UniqueId: pending.MessageId}))
}

func TestWaitHonoursContext(t *testing.T) {
	c, _ := newCorrelator()
	w := &wire{}
	pending, err := c.Send("cp1", core.NewResetRequest(core.ResetTypeSoft), w.send)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = pending.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

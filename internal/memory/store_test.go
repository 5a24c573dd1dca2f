package memory

import (
	"evcentral/entity"
	"evcentral/internal"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ internal.Database = (*Store)(nil)

func TestTransactionsAreScopedAndNumbered(t *testing.T) {
	store := NewStore()
	first := &entity.Transaction{ChargePointId: "cp-1", ConnectorId: 1, Status: entity.TransactionStatusActive}
	second := &entity.Transaction{ChargePointId: "cp-1", ConnectorId: 2, Status: entity.TransactionStatusActive}
	require.NoError(t, store.AddTransaction(first))
	require.NoError(t, store.AddTransaction(second))
	assert.NotEqual(t, first.Id, second.Id)

	_, err := store.GetTransaction("cp-2", first.Id)
	assert.ErrorIs(t, err, internal.ErrNotFound)

	active, err := store.GetActiveTransaction("cp-1", 2)
	require.NoError(t, err)
	assert.Equal(t, second.Id, active.Id)

	count, err := store.CountActiveTransactions("cp-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.AddChargePoint(entity.NewChargePoint("cp-1")))

	cp, err := store.GetChargePoint("cp-1")
	require.NoError(t, err)
	cp.Status = "Faulted"

	stored, err := store.GetChargePoint("cp-1")
	require.NoError(t, err)
	assert.Equal(t, "Available", stored.Status)
}

func TestPendingMessagesAndExpiry(t *testing.T) {
	store := NewStore()
	now := time.Now()
	require.NoError(t, store.AddMessage(&entity.Message{
		ChargePointId: "cp-1", MessageId: "old", Direction: entity.DirectionOutbound,
		MessageType: entity.MessageTypeCall, Status: entity.MessageStatusSent, CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, store.AddMessage(&entity.Message{
		ChargePointId: "cp-1", MessageId: "new", Direction: entity.DirectionOutbound,
		MessageType: entity.MessageTypeCall, Status: entity.MessageStatusPending, CreatedAt: now,
	}))
	require.NoError(t, store.AddMessage(&entity.Message{
		ChargePointId: "cp-1", MessageId: "in", Direction: entity.DirectionInbound,
		Status: entity.MessageStatusReceived, CreatedAt: now.Add(-time.Hour),
	}))

	_, err := store.FindPendingMessage("cp-1", "in")
	assert.ErrorIs(t, err, internal.ErrNotFound)

	expired, err := store.ExpireMessages(now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	_, err = store.FindPendingMessage("cp-1", "old")
	assert.ErrorIs(t, err, internal.ErrNotFound)
	pending, err := store.FindPendingMessage("cp-1", "new")
	require.NoError(t, err)
	assert.Equal(t, entity.MessageStatusPending, pending.Status)
}

func TestUpdateMessageKeepsFrameTypesApart(t *testing.T) {
	store := NewStore()
	call := &entity.Message{
		ChargePointId: "cp-1", MessageId: "m-1", Direction: entity.DirectionOutbound,
		MessageType: entity.MessageTypeCall, Status: entity.MessageStatusSent,
	}
	reply := &entity.Message{
		ChargePointId: "cp-1", MessageId: "m-1", Direction: entity.DirectionOutbound,
		MessageType: entity.MessageTypeCallResult, Status: entity.MessageStatusSent, Payload: "{}",
	}
	require.NoError(t, store.AddMessage(call))
	require.NoError(t, store.AddMessage(reply))

	call.Status = entity.MessageStatusReceived
	require.NoError(t, store.UpdateMessage(call))

	messages := store.Messages("cp-1")
	require.Len(t, messages, 2)
	for _, message := range messages {
		if message.MessageType == entity.MessageTypeCallResult {
			assert.Equal(t, entity.MessageStatusSent, message.Status)
			assert.Equal(t, "{}", message.Payload)
		} else {
			assert.Equal(t, entity.MessageStatusReceived, message.Status)
		}
	}

	unknown := *call
	unknown.MessageType = entity.MessageTypeCallError
	assert.ErrorIs(t, store.UpdateMessage(&unknown), internal.ErrNotFound)
}

func TestRetentionDeletes(t *testing.T) {
	store := NewStore()
	now := time.Now()
	require.NoError(t, store.AddAuthorization(&entity.Authorization{Id: "a1", CreatedAt: now.AddDate(0, 0, -40)}))
	require.NoError(t, store.AddAuthorization(&entity.Authorization{Id: "a2", CreatedAt: now}))
	require.NoError(t, store.AddStateChange(&entity.StateChange{Id: "s1", CreatedAt: now.AddDate(0, 0, -40)}))

	deleted, err := store.DeleteAuthorizations(now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	_, err = store.GetAuthorization("a1")
	assert.ErrorIs(t, err, internal.ErrNotFound)

	deleted, err = store.DeleteStateChanges(now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Empty(t, store.StateChanges())
}

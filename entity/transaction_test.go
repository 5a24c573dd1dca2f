package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransactionStop(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	transaction := &Transaction{MeterStart: 1000, TimeStart: start, Status: TransactionStatusActive}
	transaction.Stop(15000, "", start.Add(90*time.Minute+1500*time.Millisecond))

	assert.Equal(t, 14000, transaction.EnergyConsumed)
	assert.Equal(t, int64(5401), transaction.Duration)
	assert.Equal(t, "Local", transaction.Reason)
	assert.Equal(t, TransactionStatusCompleted, transaction.Status)
	assert.False(t, transaction.IsActive())
}

func TestMessageAdvance(t *testing.T) {
	message := &Message{Direction: DirectionOutbound, MessageType: MessageTypeCall, Status: MessageStatusPending}
	assert.True(t, message.IsAwaitingResponse())
	assert.True(t, message.Advance(MessageStatusSent))
	assert.False(t, message.Advance(MessageStatusPending))
	assert.True(t, message.IsAwaitingResponse())
	assert.True(t, message.Advance(MessageStatusReceived))
	assert.False(t, message.Advance(MessageStatusError))
	assert.Equal(t, MessageStatusReceived, message.Status)
	assert.False(t, message.IsAwaitingResponse())

	response := &Message{Direction: DirectionOutbound, MessageType: MessageTypeCallResult, Status: MessageStatusSent}
	assert.False(t, response.IsAwaitingResponse())
}

func TestSplitIdTag(t *testing.T) {
	source, id := SplitIdTag("app:ABC123")
	assert.Equal(t, "app", source)
	assert.Equal(t, "ABC123", id)

	source, id = SplitIdTag("ABC123")
	assert.Equal(t, "", source)
	assert.Equal(t, "ABC123", id)
}

package hooks

import (
	"context"
	"errors"
	"evcentral/entity"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/stretchr/testify/assert"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg)
	}
	return tgbotapi.Message{}, s.err
}

func TestTelegramHookSendsToEveryChat(t *testing.T) {
	sender := &fakeSender{}
	hook := &TelegramHook{name: "tg", api: sender, chatIds: []int64{1, 2}}
	connector := 1
	err := hook.OnStateChange(context.Background(), &entity.StateChange{
		ChargePointId: "cp-1",
		ChangeType:    entity.ChangeTypeStatus,
		ConnectorId:   &connector,
		OldValue:      "Available",
		NewValue:      "Charging",
		Metadata:      map[string]string{"error_code": "NoError"},
	})
	assert.NoError(t, err)
	assert.Len(t, sender.sent, 2)
	assert.Equal(t, int64(2), sender.sent[1].ChatID)
	assert.Contains(t, sender.sent[0].Text, "cp\\-1")
	assert.Contains(t, sender.sent[0].Text, "error\\_code: NoError")

	sender.err = errors.New("blocked by user")
	assert.Error(t, hook.OnStateChange(context.Background(), &entity.StateChange{ChargePointId: "cp-1"}))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a\\_b\\.c", sanitize("a_b.c"))
	assert.Equal(t, "plain", sanitize("plain"))
}

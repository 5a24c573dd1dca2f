package hooks

import (
	"context"
	"evcentral/entity"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramHook posts every state change to the configured chats.
type TelegramHook struct {
	name    string
	api     telegramSender
	chatIds []int64
}

func NewTelegramHook(name, apiKey string, chatIds []int64) (*TelegramHook, error) {
	api, err := tgbotapi.NewBotAPI(apiKey)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramHook{name: name, api: api, chatIds: chatIds}, nil
}

func (h *TelegramHook) Name() string {
	return h.name
}

// OnStateChange returns the last send error so a queued task gets retried.
func (h *TelegramHook) OnStateChange(_ context.Context, stateChange *entity.StateChange) error {
	text := composeStateChangeMessage(stateChange)
	var lastErr error
	for _, chatId := range h.chatIds {
		msg := tgbotapi.NewMessage(chatId, text)
		msg.ParseMode = "MarkdownV2"
		if _, err := h.api.Send(msg); err != nil {
			lastErr = fmt.Errorf("telegram chat %d: %w", chatId, err)
		}
	}
	return lastErr
}

func composeStateChangeMessage(sc *entity.StateChange) string {
	msg := fmt.Sprintf("*%v*: %v", sanitize(sc.ChargePointId), sanitize(sc.ChangeType))
	if sc.ConnectorId != nil {
		msg += fmt.Sprintf(" connector %v", *sc.ConnectorId)
	}
	msg += fmt.Sprintf("\n`%v` → `%v`\n", sanitize(sc.OldValue), sanitize(sc.NewValue))
	keys := make([]string, 0, len(sc.Metadata))
	for key := range sc.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if sc.Metadata[key] == "" {
			continue
		}
		msg += fmt.Sprintf("%v: %v\n", sanitize(key), sanitize(sc.Metadata[key]))
	}
	return msg
}

// sanitize escapes the characters reserved by MarkdownV2.
func sanitize(input string) string {
	const reservedChars = "\\`*_{}[]()#+-.!|>~="
	var sb strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sb.WriteRune('\\')
		}
		sb.WriteRune(char)
	}
	return sb.String()
}

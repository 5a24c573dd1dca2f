package hooks

import (
	"evcentral/internal"
	"evcentral/internal/config"
	"fmt"
)

const (
	TypeUserTag  = "user_tag"
	TypeWebhook  = "webhook"
	TypeTelegram = "telegram"
	TypeLog      = "log"
)

// FromConfig builds the registry from the hooks section of the configuration.
func FromConfig(conf *config.Config, database internal.Database, logger internal.LogHandler) (*Registry, error) {
	builder := NewBuilder()

	for _, hc := range conf.Hooks.Authorization {
		mode, err := ParseMode(hc.Mode)
		if err != nil {
			return nil, fmt.Errorf("authorization hook %s: %w", hc.Name, err)
		}
		switch hc.Type {
		case TypeUserTag:
			if mode == ModeAsync {
				return nil, fmt.Errorf("authorization hook %s: %s hooks are sync only", hc.Name, hc.Type)
			}
			builder.AuthorizationSync(NewUserTagHook(hc.Name, database, conf.IsDebug))
		case TypeWebhook:
			if hc.Url == "" {
				return nil, fmt.Errorf("authorization hook %s: url is required", hc.Name)
			}
			webhook := NewWebhook(hc.Name, hc.Url, hc.Token, hc.Timeout, logger)
			if mode == ModeAsync {
				builder.AuthorizationAsync(webhook)
			} else {
				builder.AuthorizationSync(webhook)
			}
		default:
			return nil, fmt.Errorf("authorization hook %s: unsupported type %q", hc.Name, hc.Type)
		}
	}

	for _, hc := range conf.Hooks.StateChange {
		mode, err := ParseMode(hc.Mode)
		if err != nil {
			return nil, fmt.Errorf("state change hook %s: %w", hc.Name, err)
		}
		switch hc.Type {
		case TypeLog:
			builder.StateChange(NewLogHook(hc.Name, logger), mode)
		case TypeWebhook:
			if hc.Url == "" {
				return nil, fmt.Errorf("state change hook %s: url is required", hc.Name)
			}
			builder.StateChange(NewWebhook(hc.Name, hc.Url, hc.Token, hc.Timeout, logger), mode)
		case TypeTelegram:
			if !conf.Telegram.Enabled {
				return nil, fmt.Errorf("state change hook %s: telegram is not enabled", hc.Name)
			}
			bot, err := NewTelegramHook(hc.Name, conf.Telegram.ApiKey, conf.Telegram.ChatIds)
			if err != nil {
				return nil, fmt.Errorf("state change hook %s: %w", hc.Name, err)
			}
			// telegram hooks always run queued
			builder.StateChange(bot, ModeAsync)
		default:
			return nil, fmt.Errorf("state change hook %s: unsupported type %q", hc.Name, hc.Type)
		}
	}

	return builder.Build()
}

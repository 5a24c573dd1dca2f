package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	conf, err := Load(writeConfig(t, "is_debug: true\n"))
	require.NoError(t, err)

	assert.True(t, conf.IsDebug)
	assert.Equal(t, 300, conf.HeartbeatInterval)
	assert.Equal(t, "5000", conf.Listen.Port)
	assert.Equal(t, 3, conf.Tasks.MaxAttempts)
	assert.Equal(t, time.Second, conf.Tasks.BaseDelay)
	assert.Equal(t, 30, conf.Cleanup.AuthorizationRetentionDays)
	assert.Equal(t, 60*time.Second, conf.Cleanup.OutboundTimeout)
	assert.Equal(t, 10*time.Second, conf.Api.ResponseTimeout)
	assert.Equal(t, time.UTC, conf.Location())
}

func TestLoadHooks(t *testing.T) {
	conf, err := Load(writeConfig(t, `
heartbeat_interval: 60
hooks:
  authorization:
    - name: tags
      type: user_tag
    - name: billing
      type: webhook
      mode: async
      url: http://localhost:9000/auth
  state_change:
    - name: audit
      type: log
`))
	require.NoError(t, err)

	assert.Equal(t, 60, conf.HeartbeatInterval)
	require.Len(t, conf.Hooks.Authorization, 2)
	assert.Equal(t, "user_tag", conf.Hooks.Authorization[0].Type)
	assert.Equal(t, "async", conf.Hooks.Authorization[1].Mode)
	require.Len(t, conf.Hooks.StateChange, 1)
	assert.Equal(t, "audit", conf.Hooks.StateChange[0].Name)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, "heartbeat_interval: -1\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "time_zone: Mars/Olympus\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

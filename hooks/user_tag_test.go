package hooks

import (
	"context"
	"evcentral/entity"
	"evcentral/internal/memory"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserTagHook(t *testing.T) {
	store := memory.NewStore()
	store.AddUserTag(&entity.UserTag{IdTag: "GOOD", IsEnabled: true, ExpiryDate: "2030-01-01"})
	store.AddUserTag(&entity.UserTag{IdTag: "OFF", IsEnabled: false})
	hook := NewUserTagHook("tags", store, false)

	result, err := hook.Authorize(context.Background(), "cp-1", "GOOD")
	require.NoError(t, err)
	assert.Equal(t, "Accepted", result.Status)
	assert.Equal(t, "2030-01-01", result.ExpiryDate)

	result, err = hook.Authorize(context.Background(), "cp-1", "app:GOOD")
	require.NoError(t, err)
	assert.Equal(t, "Accepted", result.Status)

	result, err = hook.Authorize(context.Background(), "cp-1", "OFF")
	require.NoError(t, err)
	assert.Equal(t, "Blocked", result.Status)

	result, err = hook.Authorize(context.Background(), "cp-1", "NOPE")
	require.NoError(t, err)
	assert.Equal(t, "Invalid", result.Status)

	lenient := NewUserTagHook("tags", store, true)
	result, err = lenient.Authorize(context.Background(), "cp-1", "NOPE")
	require.NoError(t, err)
	assert.Equal(t, "Accepted", result.Status)

	_, err = NewUserTagHook("tags", nil, false).Authorize(context.Background(), "cp-1", "GOOD")
	assert.Error(t, err)
}

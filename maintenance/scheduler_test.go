package maintenance

import (
	"evcentral/entity"
	"evcentral/internal"
	"evcentral/internal/config"
	"evcentral/internal/memory"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExpirer struct {
	calls  int
	maxAge time.Duration
}

func (e *countingExpirer) ExpireStale(maxAge time.Duration) int {
	e.calls++
	e.maxAge = maxAge
	return 2
}

func seed(t *testing.T, store *memory.Store, now time.Time) {
	for i, age := range []time.Duration{40 * 24 * time.Hour, time.Hour} {
		id := []string{"old", "new"}[i]
		require.NoError(t, store.AddAuthorization(&entity.Authorization{Id: id, CreatedAt: now.Add(-age)}))
		require.NoError(t, store.AddStateChange(&entity.StateChange{Id: id, CreatedAt: now.Add(-age)}))
	}
}

func defaultConfig(t *testing.T) *config.Config {
	conf, err := config.Default()
	require.NoError(t, err)
	return conf
}

func newScheduler(conf *config.Config, store *memory.Store, expirer Expirer, now time.Time) *Scheduler {
	s := NewScheduler(conf, store, expirer, internal.NewNopLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestCleanupRemovesRecordsPastRetention(t *testing.T) {
	now := time.Now()
	store := memory.NewStore()
	seed(t, store, now)
	s := newScheduler(defaultConfig(t), store, nil, now)

	s.CleanupAuthorizations()
	s.CleanupStateChanges()

	_, err := store.GetAuthorization("old")
	assert.ErrorIs(t, err, internal.ErrNotFound)
	_, err = store.GetAuthorization("new")
	assert.NoError(t, err)
	_, err = store.GetStateChange("old")
	assert.ErrorIs(t, err, internal.ErrNotFound)
	_, err = store.GetStateChange("new")
	assert.NoError(t, err)
}

func TestCleanupCanBeDisabled(t *testing.T) {
	now := time.Now()
	store := memory.NewStore()
	seed(t, store, now)
	conf := defaultConfig(t)
	conf.Cleanup.AuthorizationEnabled = false
	conf.Cleanup.StateChangeEnabled = false
	s := newScheduler(conf, store, nil, now)

	s.CleanupAuthorizations()
	s.CleanupStateChanges()

	_, err := store.GetAuthorization("old")
	assert.NoError(t, err)
	_, err = store.GetStateChange("old")
	assert.NoError(t, err)
}

func TestExpireOutboundUsesConfiguredTimeout(t *testing.T) {
	expirer := &countingExpirer{}
	conf := defaultConfig(t)
	conf.Cleanup.OutboundTimeout = 90 * time.Second
	s := newScheduler(conf, memory.NewStore(), expirer, time.Now())

	s.ExpireOutbound()
	assert.Equal(t, 1, expirer.calls)
	assert.Equal(t, 90*time.Second, expirer.maxAge)
}

func TestStartStop(t *testing.T) {
	s := newScheduler(defaultConfig(t), memory.NewStore(), &countingExpirer{}, time.Now())
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 3)
	s.Stop()
	s.Stop()
}

package hooks

import (
	"context"
	"errors"
	"evcentral/entity"
	"evcentral/internal"
	"evcentral/metrics/counters"
	"fmt"
)

// StateChangeManager fans a recorded state change out to every hook. It is fail-open:
// no hook can affect another one or the caller.
type StateChangeManager struct {
	registry *Registry
	queue    internal.TaskQueue
	database internal.Database
	logger   internal.LogHandler
}

func NewStateChangeManager(registry *Registry, queue internal.TaskQueue, logger internal.LogHandler) *StateChangeManager {
	return &StateChangeManager{
		registry: registry,
		queue:    queue,
		logger:   logger,
	}
}

func (m *StateChangeManager) SetDatabase(database internal.Database) {
	m.database = database
}

// Execute walks the hooks in registration order: asynchronous ones are queued,
// synchronous ones run inline.
func (m *StateChangeManager) Execute(ctx context.Context, stateChange *entity.StateChange) {
	for _, registered := range m.registry.StateChanges() {
		hook := registered.Hook
		if registered.Mode == ModeAsync {
			if err := m.queue.Enqueue(ctx, TaskStateChangeHook, stateChange.Id, hook.Name()); err != nil {
				counters.CountHookFailure(CategoryStateChange)
				m.logger.Error(fmt.Sprintf("enqueue state change hook %s for %s", hook.Name(), stateChange.Id), err)
			}
			continue
		}
		if err := callStateChange(ctx, hook, stateChange); err != nil {
			counters.CountHookFailure(CategoryStateChange)
			m.logger.Error(fmt.Sprintf("state change hook %s", hook.Name()), err)
		}
	}
}

// RunAsync is the body of a state_change_hook task.
func (m *StateChangeManager) RunAsync(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%s: expected 2 arguments, got %d", TaskStateChangeHook, len(args))
	}
	stateChangeId, hookName := args[0], args[1]
	if m.database == nil {
		m.logger.Warn(fmt.Sprintf("state change %s: no database, hook %s skipped", stateChangeId, hookName))
		return nil
	}
	stateChange, err := m.database.GetStateChange(stateChangeId)
	if errors.Is(err, internal.ErrNotFound) {
		m.logger.Warn(fmt.Sprintf("state change %s not found, may have been cleaned up", stateChangeId))
		return nil
	}
	if err != nil {
		return fmt.Errorf("get state change %s: %w", stateChangeId, err)
	}
	hook, ok := m.registry.StateChangeHookByName(hookName)
	if !ok {
		m.logger.Warn(fmt.Sprintf("state change hook %s is not registered", hookName))
		return nil
	}
	if err = callStateChange(ctx, hook, stateChange); err != nil {
		counters.CountHookFailure(CategoryStateChange)
		return fmt.Errorf("state change hook %s failed for %s: %w", hookName, stateChangeId, err)
	}
	return nil
}

package hooks

import (
	"context"
	"errors"
	"evcentral/internal"
	"evcentral/metrics/counters"
	"evcentral/types"
	"fmt"
	"time"
)

const defaultExpiry = 365 * 24 * time.Hour

// Decision is the outcome of one authorization request.
type Decision struct {
	Status types.AuthorizationStatus
	Expiry *time.Time
}

func (d Decision) IdTagInfo() *types.IdTagInfo {
	info := types.NewIdTagInfo(d.Status)
	if d.Status == types.AuthorizationStatusAccepted && d.Expiry != nil {
		info.ExpiryDate = types.NewDateTime(*d.Expiry)
	}
	return info
}

// AuthorizationManager runs the authorization hooks. The synchronous chain is
// fail-closed: a failing or misbehaving hook turns the decision into Invalid.
type AuthorizationManager struct {
	registry *Registry
	queue    internal.TaskQueue
	database internal.Database
	logger   internal.LogHandler
	now      func() time.Time
}

func NewAuthorizationManager(registry *Registry, queue internal.TaskQueue, logger internal.LogHandler) *AuthorizationManager {
	return &AuthorizationManager{
		registry: registry,
		queue:    queue,
		logger:   logger,
		now:      time.Now,
	}
}

func (m *AuthorizationManager) SetDatabase(database internal.Database) {
	m.database = database
}

// ExecuteSync evaluates the synchronous hooks in registration order. The first
// non-Accepted answer wins; if every hook accepts, the latest expiry wins.
func (m *AuthorizationManager) ExecuteSync(ctx context.Context, chargePointId, idTag string) Decision {
	now := m.now()
	fallback := now.Add(defaultExpiry)
	hooks := m.registry.AuthorizationSync()
	if len(hooks) == 0 {
		return Decision{Status: types.AuthorizationStatusAccepted, Expiry: &fallback}
	}

	var latest *time.Time
	for _, hook := range hooks {
		result, err := callAuthorize(ctx, hook, chargePointId, idTag)
		if err != nil {
			m.fail(hook.Name(), err)
			return Decision{Status: types.AuthorizationStatusInvalid}
		}
		status := types.AuthorizationStatus(result.Status)
		if !status.IsValid() {
			m.fail(hook.Name(), fmt.Errorf("invalid status %q", result.Status))
			return Decision{Status: types.AuthorizationStatusInvalid}
		}
		if status != types.AuthorizationStatusAccepted {
			m.logger.FeatureEvent(CategoryAuthorization, chargePointId, fmt.Sprintf("hook %s rejected %s with status %s", hook.Name(), idTag, status))
			return Decision{Status: status}
		}
		if result.ExpiryDate == "" {
			continue
		}
		expiry, ok := types.ParseTime(result.ExpiryDate)
		if !ok {
			m.logger.Warn(fmt.Sprintf("authorization hook %s: unparsable expiry %q, using default", hook.Name(), result.ExpiryDate))
			expiry = fallback
		}
		if latest == nil || expiry.After(*latest) {
			latest = &expiry
		}
	}
	if latest == nil {
		latest = &fallback
	}
	return Decision{Status: types.AuthorizationStatusAccepted, Expiry: latest}
}

// ExecuteAsync queues one task per asynchronous hook. Enqueue failures are logged and
// skipped; redelivery belongs to the queue.
func (m *AuthorizationManager) ExecuteAsync(ctx context.Context, authorizationId string) {
	for _, hook := range m.registry.AuthorizationAsync() {
		if err := m.queue.Enqueue(ctx, TaskAuthorizationHook, authorizationId, hook.Name()); err != nil {
			m.logger.Error(fmt.Sprintf("enqueue authorization hook %s for %s", hook.Name(), authorizationId), err)
		}
	}
}

// RunAsync is the body of an authorization_hook task. A vanished record or an unknown
// hook is a no-op; a hook error is returned so the queue retries.
func (m *AuthorizationManager) RunAsync(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%s: expected 2 arguments, got %d", TaskAuthorizationHook, len(args))
	}
	authorizationId, hookName := args[0], args[1]
	if m.database == nil {
		m.logger.Warn(fmt.Sprintf("authorization %s: no database, hook %s skipped", authorizationId, hookName))
		return nil
	}
	authorization, err := m.database.GetAuthorization(authorizationId)
	if errors.Is(err, internal.ErrNotFound) {
		m.logger.Warn(fmt.Sprintf("authorization %s not found, may have been cleaned up", authorizationId))
		return nil
	}
	if err != nil {
		return fmt.Errorf("get authorization %s: %w", authorizationId, err)
	}
	hook, ok := m.registry.AuthorizationObserverByName(hookName)
	if !ok {
		m.logger.Warn(fmt.Sprintf("authorization hook %s is not registered", hookName))
		return nil
	}
	if err = callObserve(ctx, hook, authorization); err != nil {
		counters.CountHookFailure(CategoryAuthorization)
		return fmt.Errorf("authorization hook %s failed for %s: %w", hookName, authorizationId, err)
	}
	return nil
}

func (m *AuthorizationManager) fail(hookName string, err error) {
	counters.CountHookFailure(CategoryAuthorization)
	m.logger.Error(fmt.Sprintf("authorization hook %s", hookName), err)
}

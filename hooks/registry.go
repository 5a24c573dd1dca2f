// Package hooks runs host supplied extensions around authorization decisions and
// charge point state changes.
package hooks

import (
	"context"
	"evcentral/entity"
	"fmt"
)

type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"

	CategoryAuthorization = "authorization"
	CategoryStateChange   = "state_change"

	// TaskAuthorizationHook args: authorization id, hook name.
	TaskAuthorizationHook = "authorization_hook"
	// TaskStateChangeHook args: state change id, hook name.
	TaskStateChangeHook = "state_change_hook"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case "", ModeSync:
		return ModeSync, nil
	case ModeAsync:
		return ModeAsync, nil
	}
	return "", fmt.Errorf("unknown hook mode %q", value)
}

// AuthorizationResult is what a synchronous authorization hook answers. ExpiryDate is
// optional and parsed leniently.
type AuthorizationResult struct {
	Status     string `json:"status"`
	ExpiryDate string `json:"expiry_date,omitempty"`
}

// AuthorizationHook takes part in the synchronous, fail-closed decision chain.
type AuthorizationHook interface {
	Name() string
	Authorize(ctx context.Context, chargePointId, idTag string) (*AuthorizationResult, error)
}

// AuthorizationObserver is invoked out-of-band with the persisted decision.
type AuthorizationObserver interface {
	Name() string
	OnAuthorization(ctx context.Context, authorization *entity.Authorization) error
}

type StateChangeHook interface {
	Name() string
	OnStateChange(ctx context.Context, stateChange *entity.StateChange) error
}

// RegisteredStateChange is a state change hook together with the mode it was registered with.
type RegisteredStateChange struct {
	Hook StateChangeHook
	Mode Mode
}

// Registry holds the hooks of both categories split by mode. It is assembled once
// through a Builder and never changes afterwards.
type Registry struct {
	authorizationSync  []AuthorizationHook
	authorizationAsync []AuthorizationObserver
	stateChanges       []RegisteredStateChange
	stateChangeSync    []StateChangeHook
	stateChangeAsync   []StateChangeHook
}

func (r *Registry) AuthorizationSync() []AuthorizationHook {
	if r == nil {
		return nil
	}
	return r.authorizationSync
}

func (r *Registry) AuthorizationAsync() []AuthorizationObserver {
	if r == nil {
		return nil
	}
	return r.authorizationAsync
}

// StateChanges lists every state change hook of both modes in registration order.
func (r *Registry) StateChanges() []RegisteredStateChange {
	if r == nil {
		return nil
	}
	return r.stateChanges
}

func (r *Registry) StateChangeSync() []StateChangeHook {
	if r == nil {
		return nil
	}
	return r.stateChangeSync
}

func (r *Registry) StateChangeAsync() []StateChangeHook {
	if r == nil {
		return nil
	}
	return r.stateChangeAsync
}

// AuthorizationObserverByName resolves the hook named in a queued task.
func (r *Registry) AuthorizationObserverByName(name string) (AuthorizationObserver, bool) {
	for _, hook := range r.AuthorizationAsync() {
		if hook.Name() == name {
			return hook, true
		}
	}
	return nil, false
}

func (r *Registry) StateChangeHookByName(name string) (StateChangeHook, bool) {
	for _, hook := range r.StateChangeAsync() {
		if hook.Name() == name {
			return hook, true
		}
	}
	return nil, false
}

type Builder struct {
	registry *Registry
	names    map[string]struct{}
	err      error
}

func NewBuilder() *Builder {
	return &Builder{
		registry: &Registry{},
		names:    make(map[string]struct{}),
	}
}

func (b *Builder) claim(category, name string) bool {
	if b.err != nil {
		return false
	}
	if name == "" {
		b.err = fmt.Errorf("%s hook without a name", category)
		return false
	}
	key := category + "/" + name
	if _, ok := b.names[key]; ok {
		b.err = fmt.Errorf("duplicate %s hook %q", category, name)
		return false
	}
	b.names[key] = struct{}{}
	return true
}

func (b *Builder) AuthorizationSync(hook AuthorizationHook) *Builder {
	if b.claim(CategoryAuthorization, hook.Name()) {
		b.registry.authorizationSync = append(b.registry.authorizationSync, hook)
	}
	return b
}

func (b *Builder) AuthorizationAsync(hook AuthorizationObserver) *Builder {
	if b.claim(CategoryAuthorization, hook.Name()) {
		b.registry.authorizationAsync = append(b.registry.authorizationAsync, hook)
	}
	return b
}

func (b *Builder) StateChange(hook StateChangeHook, mode Mode) *Builder {
	if !b.claim(CategoryStateChange, hook.Name()) {
		return b
	}
	b.registry.stateChanges = append(b.registry.stateChanges, RegisteredStateChange{Hook: hook, Mode: mode})
	if mode == ModeAsync {
		b.registry.stateChangeAsync = append(b.registry.stateChangeAsync, hook)
	} else {
		b.registry.stateChangeSync = append(b.registry.stateChangeSync, hook)
	}
	return b
}

// Build returns the registry, or the first registration error.
func (b *Builder) Build() (*Registry, error) {
	if b.err != nil {
		return nil, b.err
	}
	registry := b.registry
	b.registry = &Registry{}
	return registry, nil
}

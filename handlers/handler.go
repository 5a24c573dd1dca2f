// Package handlers holds the business logic behind every inbound OCPP action.
package handlers

import (
	"context"
	"encoding/json"
	"evcentral/ocpp"
	"sort"
)

// Handler answers one inbound call. Domain rejections travel inside the response;
// an error is reserved for faults.
type Handler interface {
	Handle(ctx context.Context, chargePointId string, payload json.RawMessage) (ocpp.Response, error)
}

type HandlerFunc func(ctx context.Context, chargePointId string, payload json.RawMessage) (ocpp.Response, error)

func (f HandlerFunc) Handle(ctx context.Context, chargePointId string, payload json.RawMessage) (ocpp.Response, error) {
	return f(ctx, chargePointId, payload)
}

// Typed decodes the payload into the action's request type before calling fn.
func Typed[T any, R ocpp.Response](fn func(ctx context.Context, chargePointId string, request *T) (R, error)) Handler {
	return HandlerFunc(func(ctx context.Context, chargePointId string, payload json.RawMessage) (ocpp.Response, error) {
		request, err := ocpp.ParsePayload[T](payload)
		if err != nil {
			return nil, err
		}
		response, err := fn(ctx, chargePointId, request)
		if err != nil {
			return nil, err
		}
		return response, nil
	})
}

// Registry maps action names to handlers. It is filled once and only read afterwards.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(handlers map[string]Handler) *Registry {
	registry := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for action, handler := range handlers {
		registry.handlers[action] = handler
	}
	return registry
}

func (r *Registry) Lookup(action string) (Handler, bool) {
	handler, ok := r.handlers[action]
	return handler, ok
}

func (r *Registry) Actions() []string {
	actions := make([]string, 0, len(r.handlers))
	for action := range r.handlers {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions
}

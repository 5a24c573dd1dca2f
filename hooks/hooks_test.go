package hooks

import (
	"context"
	"errors"
	"evcentral/entity"
	"evcentral/internal"
	"sync"
)

type queuedTask struct {
	name string
	args []string
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, name string, args ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, queuedTask{name: name, args: args})
	return nil
}

type scriptedAuthorization struct {
	name   string
	result *AuthorizationResult
	err    error
	panics bool
	calls  int
}

func (h *scriptedAuthorization) Name() string { return h.name }

func (h *scriptedAuthorization) Authorize(_ context.Context, _, _ string) (*AuthorizationResult, error) {
	h.calls++
	if h.panics {
		panic("hook exploded")
	}
	return h.result, h.err
}

type recordingObserver struct {
	name string
	err  error
	seen []string
}

func (h *recordingObserver) Name() string { return h.name }

func (h *recordingObserver) OnAuthorization(_ context.Context, authorization *entity.Authorization) error {
	h.seen = append(h.seen, authorization.Id)
	return h.err
}

type recordingStateHook struct {
	name   string
	err    error
	panics bool
	seen   []string
}

func (h *recordingStateHook) Name() string { return h.name }

func (h *recordingStateHook) OnStateChange(_ context.Context, sc *entity.StateChange) error {
	h.seen = append(h.seen, sc.Id)
	if h.panics {
		panic("state hook exploded")
	}
	return h.err
}

var errHook = errors.New("hook failed")

var logger internal.LogHandler = internal.NewNopLogger()

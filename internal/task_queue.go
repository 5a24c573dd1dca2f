package internal

import "context"

// TaskQueue accepts named tasks for out-of-band, at-least-once execution.
type TaskQueue interface {
	Enqueue(ctx context.Context, name string, args ...string) error
}

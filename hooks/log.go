package hooks

import (
	"context"
	"evcentral/entity"
	"evcentral/internal"
	"fmt"
)

// LogHook writes state changes to the log.
type LogHook struct {
	name   string
	logger internal.LogHandler
}

func NewLogHook(name string, logger internal.LogHandler) *LogHook {
	return &LogHook{name: name, logger: logger}
}

func (h *LogHook) Name() string {
	return h.name
}

func (h *LogHook) OnStateChange(_ context.Context, sc *entity.StateChange) error {
	h.logger.FeatureEvent(sc.ChangeType, sc.ChargePointId, fmt.Sprintf("connector %s: %s -> %s", sc.Connector(), sc.OldValue, sc.NewValue))
	return nil
}

package events

import (
	"github.com/kandev/raworc/internal/common/config"
	"github.com/kandev/raworc/internal/common/logger"
)

// New returns a NATSEventBus when cfg.URL is set, otherwise an in-process
// MemoryEventBus. Either satisfies EventBus, so callers never branch on
// which one they got.
func New(cfg config.NATSConfig, log *logger.Logger) (EventBus, error) {
	if cfg.URL == "" {
		log.Info("nats.url not set, using in-memory event bus")
		return NewMemoryEventBus(log), nil
	}
	return NewNATSEventBus(cfg, log)
}

package leaderboard

import (
	"time"

	"github.com/okian/arena/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock sets the clock that picks the current period.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTenantScoping restricts every view to the viewer's organization.
func WithTenantScoping(enabled bool) Option {
	return func(e *Engine) {
		e.tenantScoping = enabled
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

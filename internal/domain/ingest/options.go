package ingest

import (
	"github.com/okian/arena/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAdapters replaces the adapter registry.
func WithAdapters(r AdapterResolver) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.adapters = r
		}
	}
}

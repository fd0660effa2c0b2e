// Package crm normalizes CRM webhook payloads into canonical performance records.
//
// Every source system has its own payload shape. Adapters describe that shape
// as ordered alias tables (see fields.go) so the alias priority is data rather
// than branching code.
package crm

import (
	"fmt"
	"time"

	"github.com/okian/arena/internal/domain/model"
)

// Adapter maps one source system's payload into zero or more records.
type Adapter interface {
	Source() model.SourceSystem
	// Normalize validates payload and returns the records it carries in
	// payload order. A malformed payload yields a *ValidationError.
	Normalize(payload []byte) ([]model.Record, error)
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithClock overrides the clock used when a record carries no usable period.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry resolves a source system to its adapter. The mapping is static.
type Registry struct {
	now      func() time.Time
	adapters map[model.SourceSystem]Adapter
}

// NewRegistry builds a registry holding one adapter per supported source.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	clock := func() time.Time { return r.now().UTC() }
	r.adapters = map[model.SourceSystem]Adapter{
		model.SourceElead:     &eleadAdapter{now: clock},
		model.SourceFortellis: &fortellisAdapter{now: clock},
		model.SourceXtime:     &xtimeAdapter{now: clock},
		model.SourceDripJobs:  &dripJobsAdapter{now: clock},
	}
	return r
}

// Resolve returns the adapter for src. An unknown source is a caller error.
func (r *Registry) Resolve(src model.SourceSystem) (Adapter, error) {
	a, ok := r.adapters[src]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownSource, src)
	}
	return a, nil
}

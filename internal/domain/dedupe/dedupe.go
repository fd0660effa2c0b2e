// Package dedupe tracks which source records have already been ingested.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/arena/internal/domain/model"
)

// Key identifies one delivered record: the pair is unique across the ledger.
type Key struct {
	Source   model.SourceSystem
	RecordID string
}

// String renders the key as source|record_id.
func (k Key) String() string {
	return string(k.Source) + "|" + k.RecordID
}

// Deduper records seen keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key Key) bool

	// Unrecord removes a key, allowing it to be retried. Used when a key was
	// claimed but the ledger write that followed failed.
	Unrecord(ctx context.Context, key Key)

	Size() int64
}

// inMemoryDeduper implements Deduper with a map. It never evicts: dropping a
// key would let a redelivered record be counted twice.
type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[Key]struct{}
	size atomic.Int64
	hint int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[Key]struct{}, d.hint)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key Key) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// Package repository holds the ledger, user and performance stores.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/metrics"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Store is everything the service needs from persistence. It satisfies the
// ingestion pipeline's and the leaderboard engine's consumer interfaces.
type Store interface {
	InsertRawIngest(ctx context.Context, rec model.Record) (model.RawIngest, error)
	UpdateRawIngest(ctx context.Context, id string, res model.RawIngestResolution) error
	GetRawIngest(ctx context.Context, src model.SourceSystem, externalRecordID string) (model.RawIngest, error)

	SaveUser(ctx context.Context, u model.User) (model.User, error)
	FindUserByExternalID(ctx context.Context, dealershipID, externalUserID, organizationID string) (model.User, error)

	IncrementPerformance(ctx context.Context, userID string, month, year int, m model.Metrics) (model.Performance, error)
	ListPerformance(ctx context.Context, q model.PerformanceQuery) ([]model.PerformanceRow, error)

	Counts(ctx context.Context) (Counts, error)
	Close() error
}

// Counts reports table sizes for the stats endpoint.
type Counts struct {
	Users        int64 `json:"users"`
	RawIngests   int64 `json:"rawIngests"`
	Unmatched    int64 `json:"unmatched"`
	Performances int64 `json:"performances"`
}

// Options selects and configures a store implementation.
type Options struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Open builds the store named by o.Driver.
func Open(ctx context.Context, o Options, opts ...Option) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(o.Driver)) {
	case DriverMemory:
		return NewMemoryStore(opts...), nil
	case DriverSQLite, "":
		return NewSQLStore(ctx, DriverSQLite, o.DSN, o.MaxOpenConns, opts...)
	case DriverPostgres:
		return NewSQLStore(ctx, DriverPostgres, o.DSN, o.MaxOpenConns, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, o.Driver)
	}
}

// validateUser checks the fields a user needs to be attributable.
func validateUser(u model.User) error {
	if strings.TrimSpace(u.DealershipID) == "" || strings.TrimSpace(u.ExternalUserID) == "" {
		return fmt.Errorf("%w: dealership id and external user id are required", ErrInvalidUser)
	}
	if _, err := model.ParseRole(string(u.Role)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}
	return nil
}

// observe records the latency of a store operation.
func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

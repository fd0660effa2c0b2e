// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	repository "github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/crm"
	"github.com/okian/arena/internal/domain/ingest"
	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Service implements the API dependencies: webhook ingestion, leaderboard
// reads and runtime statistics.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	pipeline *ingest.Pipeline
	engine   *leaderboard.Engine

	// Configuration
	storeOptions  repository.Options
	users         []model.User
	tenantScoping bool
	now           func() time.Time

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore selects the persistence backend.
func WithStore(o repository.Options) Option {
	return func(s *Service) {
		s.storeOptions = o
	}
}

// WithUsers sets the accounts upserted at startup.
func WithUsers(users []model.User) Option {
	return func(s *Service) {
		s.users = append([]model.User(nil), users...)
	}
}

// WithTenantScoping restricts leaderboards to the viewer's organization.
func WithTenantScoping(enabled bool) Option {
	return func(s *Service) {
		s.tenantScoping = enabled
	}
}

// WithClock sets the clock used for period fallback and leaderboard months.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeOptions: repository.Options{Driver: repository.DriverMemory},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store, seeds users and builds the pipeline and engine.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting arena service...", logger.String("store", s.storeOptions.Driver))

	store, err := repository.Open(ctx, s.storeOptions)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenStore, err)
	}
	for _, u := range s.users {
		if _, err := store.SaveUser(ctx, u); err != nil {
			_ = store.Close()
			return fmt.Errorf("%w: %s/%s: %w", ErrSeedUsers, u.DealershipID, u.ExternalUserID, err)
		}
	}
	metrics.UpdateSeededUsers(len(s.users))

	s.store = store
	s.pipeline = ingest.NewPipeline(store,
		ingest.WithAdapters(crm.NewRegistry(crm.WithClock(s.now))),
		ingest.WithLogger(s.logger.Named("ingest")),
	)
	s.engine = leaderboard.NewEngine(store,
		leaderboard.WithClock(s.now),
		leaderboard.WithTenantScoping(s.tenantScoping),
		leaderboard.WithLogger(s.logger.Named("leaderboard")),
	)
	s.started = true
	s.startedAt = time.Now()

	s.logger.Info(ctx, "arena service started",
		logger.Int("seededUsers", len(s.users)),
		logger.Bool("tenantScoping", s.tenantScoping),
	)
	return nil
}

// Stop closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping arena service...")
	if err := s.store.Close(); err != nil {
		s.logger.Error(context.Background(), "store close failed", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "arena service stopped")
}

// Ingest runs one webhook payload through the pipeline.
func (s *Service) Ingest(ctx context.Context, src model.SourceSystem, payload []byte, tenant string) (ingest.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ingest.Result{SourceSystem: src}, ErrNotStarted
	}
	return s.pipeline.Ingest(ctx, src, payload, tenant)
}

// GetLeaderboard builds the viewer's current-month leaderboard.
func (s *Service) GetLeaderboard(ctx context.Context, q leaderboard.Query) (leaderboard.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return leaderboard.Response{}, ErrNotStarted
	}
	return s.engine.GetLeaderboard(ctx, q)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"storeDriver":   s.storeOptions.Driver,
		"tenantScoping": s.tenantScoping,
		"seededUsers":   len(s.users),
		"goroutines":    runtime.NumGoroutine(),
	}
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if s.started {
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
		counts, err := s.store.Counts(ctx)
		if err != nil {
			s.logger.Warn(ctx, "store counts unavailable", logger.Error(err))
			stats["storeError"] = err.Error()
		} else {
			stats["users"] = counts.Users
			stats["rawIngests"] = counts.RawIngests
			stats["unmatched"] = counts.Unmatched
			stats["performances"] = counts.Performances
		}
	}
	return stats
}

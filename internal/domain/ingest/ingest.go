// Package ingest turns a webhook payload into ledger rows and monthly totals.
//
// Every normalized record is first claimed in the RawIngest ledger, whose
// (source, external record id) uniqueness makes redelivery a no-op. Claimed
// records are attributed to a user and folded into that user's monthly
// Performance with an atomic increment.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/arena/internal/domain/crm"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Store is the persistence the pipeline needs.
type Store interface {
	// InsertRawIngest creates the ledger row for rec. A second insert for the
	// same (source, external record id) returns model.ErrDuplicateRecord.
	InsertRawIngest(ctx context.Context, rec model.Record) (model.RawIngest, error)
	UpdateRawIngest(ctx context.Context, id string, res model.RawIngestResolution) error
	// FindUserByExternalID returns model.ErrUserNotFound when no user matches.
	// An empty organizationID matches users in any organization.
	FindUserByExternalID(ctx context.Context, dealershipID, externalUserID, organizationID string) (model.User, error)
	// IncrementPerformance adds m to the (user, month, year) totals, creating
	// the row on first use. It must be atomic against concurrent callers.
	IncrementPerformance(ctx context.Context, userID string, month, year int, m model.Metrics) (model.Performance, error)
}

// AdapterResolver maps a source system to its payload adapter.
type AdapterResolver interface {
	Resolve(src model.SourceSystem) (crm.Adapter, error)
}

// Result summarizes one ingestion call.
type Result struct {
	SourceSystem      model.SourceSystem `json:"sourceSystem"`
	TotalRecords      int                `json:"totalRecords"`
	ProcessedRecords  int                `json:"processedRecords"`
	SkippedDuplicates int                `json:"skippedDuplicates"`
	UnmatchedUsers    int                `json:"unmatchedUsers"`
}

// Pipeline runs ingestion for every source system.
type Pipeline struct {
	store    Store
	adapters AdapterResolver
	logger   logger.Logger
}

// NewPipeline creates a pipeline writing to store.
func NewPipeline(store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		adapters: crm.NewRegistry(),
		logger:   logger.Get().Named("ingest"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest normalizes payload with the adapter for src and applies each record
// in payload order. tenant, when set, restricts user resolution to one
// organization.
//
// A validation failure aborts before anything is written. A storage failure
// aborts the remainder of the batch; already applied records stay applied and
// are recognized as duplicates on redelivery.
func (p *Pipeline) Ingest(ctx context.Context, src model.SourceSystem, payload []byte, tenant string) (Result, error) {
	start := time.Now()
	res := Result{SourceSystem: src}
	metrics.RecordWebhookBatch(string(src))

	adapter, err := p.adapters.Resolve(src)
	if err != nil {
		return res, err
	}
	records, err := adapter.Normalize(payload)
	if err != nil {
		metrics.RecordIngestFailure(string(src), "validation")
		p.logger.Warn(ctx, "payload rejected",
			logger.String("source", string(src)),
			logger.Error(err))
		return res, err
	}
	res.TotalRecords = len(records)

	for _, rec := range records {
		if err := p.apply(ctx, rec, tenant, &res); err != nil {
			metrics.RecordIngestFailure(string(src), "storage")
			metrics.RecordErrorByComponent("ingest", "storage")
			p.logger.Error(ctx, "ingestion aborted",
				logger.String("source", string(src)),
				logger.String("external_record_id", rec.ExternalRecordID),
				logger.Int("processed", res.ProcessedRecords),
				logger.Error(err))
			return res, err
		}
	}

	metrics.RecordIngestDuration(string(src), float64(time.Since(start).Microseconds())/1000)
	p.logger.Info(ctx, "webhook ingested",
		logger.String("source", string(src)),
		logger.Int("total", res.TotalRecords),
		logger.Int("processed", res.ProcessedRecords),
		logger.Int("duplicates", res.SkippedDuplicates),
		logger.Int("unmatched", res.UnmatchedUsers))
	return res, nil
}

// apply runs the ledger, resolution and aggregation steps for one record.
func (p *Pipeline) apply(ctx context.Context, rec model.Record, tenant string, res *Result) error {
	src := string(rec.SourceSystem)

	raw, err := p.store.InsertRawIngest(ctx, rec)
	if errors.Is(err, model.ErrDuplicateRecord) {
		res.SkippedDuplicates++
		metrics.RecordIngestedRecord(src, metrics.OutcomeDuplicate)
		p.logger.Debug(ctx, "duplicate record skipped",
			logger.String("source", src),
			logger.String("external_record_id", rec.ExternalRecordID))
		return nil
	}
	if err != nil {
		return storageErr(opInsertRaw, err)
	}

	user, err := p.store.FindUserByExternalID(ctx, rec.DealershipID, rec.ExternalUserID, tenant)
	if errors.Is(err, model.ErrUserNotFound) {
		msg := fmt.Sprintf("no user found for external_user_id=%s dealership_id=%s", rec.ExternalUserID, rec.DealershipID)
		if err := p.store.UpdateRawIngest(ctx, raw.ID, model.RawIngestResolution{ErrorMessage: msg}); err != nil {
			return storageErr(opUpdateRaw, err)
		}
		res.UnmatchedUsers++
		metrics.RecordIngestedRecord(src, metrics.OutcomeUnmatched)
		p.logger.Warn(ctx, "unmatched user",
			logger.String("source", src),
			logger.String("external_user_id", rec.ExternalUserID),
			logger.String("dealership_id", rec.DealershipID))
		return nil
	}
	if err != nil {
		return storageErr(opFindUser, err)
	}

	perf, err := p.store.IncrementPerformance(ctx, user.ID, rec.Month, rec.Year, rec.Metrics)
	if err != nil {
		return storageErr(opIncrement, err)
	}
	if err := p.store.UpdateRawIngest(ctx, raw.ID, model.RawIngestResolution{
		ProcessedUserID:        user.ID,
		ProcessedPerformanceID: perf.ID,
	}); err != nil {
		return storageErr(opUpdateRaw, err)
	}
	res.ProcessedRecords++
	metrics.RecordIngestedRecord(src, metrics.OutcomeProcessed)
	return nil
}

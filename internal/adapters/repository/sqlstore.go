package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/arena/internal/domain/model"
)

// SQLStore persists the ledger, users and performance totals through gorm.
// Uniqueness is enforced by the schema's unique indexes and increments are a
// single INSERT ... ON CONFLICT DO UPDATE statement.
type SQLStore struct {
	db  *gorm.DB
	cfg settings
}

// NewSQLStore opens driver at dsn and migrates the schema.
func NewSQLStore(ctx context.Context, driver, dsn string, maxOpenConns int, opts ...Option) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrMissingDSN
	}
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewSQLStoreFromDB(ctx, db, opts...)
}

// NewSQLStoreFromDB wraps an open gorm handle and migrates the schema.
func NewSQLStoreFromDB(ctx context.Context, db *gorm.DB, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{db: db, cfg: defaultSettings()}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	if err := db.WithContext(ctx).AutoMigrate(&userRow{}, &rawIngestRow{}, &performanceRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return s, nil
}

// InsertRawIngest creates the ledger row. The unique index on
// (source_system, external_record_id) rejects redeliveries.
func (s *SQLStore) InsertRawIngest(ctx context.Context, rec model.Record) (model.RawIngest, error) {
	defer observe("insert_raw_ingest", time.Now())

	now := s.cfg.now()
	row := rawIngestRow{
		ID:               s.cfg.newID(),
		SourceSystem:     string(rec.SourceSystem),
		ExternalRecordID: rec.ExternalRecordID,
		Payload:          string(rec.RawPayload),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.RawIngest{}, fmt.Errorf("%w: %s/%s", model.ErrDuplicateRecord, rec.SourceSystem, rec.ExternalRecordID)
		}
		return model.RawIngest{}, fmt.Errorf("insert raw ingest: %w", err)
	}
	return row.toModel(), nil
}

// UpdateRawIngest applies the single resolution update to a ledger row.
func (s *SQLStore) UpdateRawIngest(ctx context.Context, id string, res model.RawIngestResolution) error {
	defer observe("update_raw_ingest", time.Now())

	tx := s.db.WithContext(ctx).Model(&rawIngestRow{}).Where("id = ?", id).Updates(map[string]any{
		"error_message":            ptr(res.ErrorMessage),
		"processed_user_id":        ptr(res.ProcessedUserID),
		"processed_performance_id": ptr(res.ProcessedPerformanceID),
		"updated_at":               s.cfg.now(),
	})
	if tx.Error != nil {
		return fmt.Errorf("update raw ingest: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("update raw ingest %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// GetRawIngest reads a ledger row by its natural key.
func (s *SQLStore) GetRawIngest(ctx context.Context, src model.SourceSystem, externalRecordID string) (model.RawIngest, error) {
	var row rawIngestRow
	err := s.db.WithContext(ctx).
		Where("source_system = ? AND external_record_id = ?", string(src), externalRecordID).
		Take(&row).Error
	if err != nil {
		return model.RawIngest{}, fmt.Errorf("get raw ingest: %w", err)
	}
	return row.toModel(), nil
}

// SaveUser inserts u or updates the user already holding its
// (dealership, external user id) pair. The stored user is returned.
func (s *SQLStore) SaveUser(ctx context.Context, u model.User) (model.User, error) {
	if err := validateUser(u); err != nil {
		return model.User{}, err
	}
	now := s.cfg.now()
	row := userRow{
		ID:             u.ID,
		Name:           u.Name,
		Role:           string(u.Role),
		DealershipID:   u.DealershipID,
		ExternalUserID: u.ExternalUserID,
		CRMSource:      string(u.CRMSource),
		OrganizationID: u.OrganizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if row.ID == "" {
		row.ID = s.cfg.newID()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dealership_id"}, {Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "crm_source", "organization_id", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return model.User{}, fmt.Errorf("save user: %w", err)
	}

	var stored userRow
	if err := s.db.WithContext(ctx).
		Where("dealership_id = ? AND external_user_id = ?", u.DealershipID, u.ExternalUserID).
		Take(&stored).Error; err != nil {
		return model.User{}, fmt.Errorf("save user: %w", err)
	}
	return stored.toModel(), nil
}

// FindUserByExternalID resolves the user a record belongs to.
func (s *SQLStore) FindUserByExternalID(ctx context.Context, dealershipID, externalUserID, organizationID string) (model.User, error) {
	defer observe("find_user", time.Now())

	q := s.db.WithContext(ctx).Where("dealership_id = ? AND external_user_id = ?", dealershipID, externalUserID)
	if organizationID != "" {
		q = q.Where("organization_id = ?", organizationID)
	}
	var row userRow
	if err := q.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.User{}, model.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("find user: %w", err)
	}
	return row.toModel(), nil
}

// IncrementPerformance upserts the (user, month, year) row, adding m to every
// total in the same statement, then reads the row back.
func (s *SQLStore) IncrementPerformance(ctx context.Context, userID string, month, year int, m model.Metrics) (model.Performance, error) {
	defer observe("increment_performance", time.Now())

	now := s.cfg.now()
	seed := model.NewPerformance(s.cfg.newID(), userID, month, year, m)
	row := performanceRow{
		ID:                seed.ID,
		UserID:            userID,
		Month:             month,
		Year:              year,
		LeadsCreated:      seed.LeadsCreated,
		CarsSold:          seed.CarsSold,
		VehicleValueTotal: seed.VehicleValueTotal,
		ProfitTotal:       seed.ProfitTotal,
		ServicesCompleted: seed.ServicesCompleted,
		HoursBilled:       seed.HoursBilled,
		HoursWorked:       seed.HoursWorked,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var stored performanceRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "month"}, {Name: "year"}},
			DoUpdates: clause.Assignments(map[string]any{
				"leads_created":       increment("leads_created", row.LeadsCreated),
				"cars_sold":           increment("cars_sold", row.CarsSold),
				"vehicle_value_total": increment("vehicle_value_total", row.VehicleValueTotal),
				"profit_total":        increment("profit_total", row.ProfitTotal),
				"services_completed":  increment("services_completed", row.ServicesCompleted),
				"hours_billed":        increment("hours_billed", row.HoursBilled),
				"hours_worked":        increment("hours_worked", row.HoursWorked),
				"updated_at":          now,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Where("user_id = ? AND month = ? AND year = ?", userID, month, year).Take(&stored).Error
	})
	if err != nil {
		return model.Performance{}, fmt.Errorf("increment performance: %w", err)
	}
	return stored.toModel(), nil
}

func increment(column string, by any) clause.Expr {
	return gorm.Expr("performances."+column+" + ?", by)
}

// ListPerformance returns the period's rows joined with their owners.
func (s *SQLStore) ListPerformance(ctx context.Context, q model.PerformanceQuery) ([]model.PerformanceRow, error) {
	defer observe("list_performance", time.Now())

	tx := s.db.WithContext(ctx).
		Table("performances").
		Select("performances.*, users.name AS user_name, users.role AS user_role").
		Joins("JOIN users ON users.id = performances.user_id").
		Where("performances.month = ? AND performances.year = ?", q.Month, q.Year).
		Where("users.dealership_id = ?", q.DealershipID)
	if len(q.Roles) > 0 {
		roles := make([]string, len(q.Roles))
		for i, r := range q.Roles {
			roles[i] = string(r)
		}
		tx = tx.Where("users.role IN ?", roles)
	}
	if q.OrganizationID != "" {
		tx = tx.Where("users.organization_id = ?", q.OrganizationID)
	}

	var rows []performanceListRow
	if err := tx.Order("performances.user_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list performance: %w", err)
	}
	out := make([]model.PerformanceRow, len(rows))
	for i, r := range rows {
		out[i] = model.PerformanceRow{
			Performance: r.Performance.toModel(),
			UserName:    r.UserName,
			UserRole:    model.Role(r.UserRole),
		}
	}
	return out, nil
}

// Counts reports table sizes.
func (s *SQLStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	if err := db.Model(&userRow{}).Count(&c.Users).Error; err != nil {
		return Counts{}, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&rawIngestRow{}).Count(&c.RawIngests).Error; err != nil {
		return Counts{}, fmt.Errorf("count raw ingests: %w", err)
	}
	if err := db.Model(&rawIngestRow{}).Where("error_message IS NOT NULL").Count(&c.Unmatched).Error; err != nil {
		return Counts{}, fmt.Errorf("count unmatched: %w", err)
	}
	if err := db.Model(&performanceRow{}).Count(&c.Performances).Error; err != nil {
		return Counts{}, fmt.Errorf("count performances: %w", err)
	}
	return c, nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

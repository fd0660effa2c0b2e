package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/arena/internal/domain/model"
)

// userRow is the users table.
type userRow struct {
	ID             string `gorm:"primaryKey;size:64"`
	Name           string `gorm:"not null"`
	Role           string `gorm:"size:32;not null;index"`
	DealershipID   string `gorm:"size:128;not null;uniqueIndex:idx_users_dealership_external,priority:1"`
	ExternalUserID string `gorm:"size:128;not null;uniqueIndex:idx_users_dealership_external,priority:2"`
	CRMSource      string `gorm:"size:32"`
	OrganizationID string `gorm:"size:128;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) toModel() model.User {
	return model.User{
		ID:             r.ID,
		Name:           r.Name,
		Role:           model.Role(r.Role),
		DealershipID:   r.DealershipID,
		ExternalUserID: r.ExternalUserID,
		CRMSource:      model.SourceSystem(r.CRMSource),
		OrganizationID: r.OrganizationID,
	}
}

// rawIngestRow is the raw_ingests ledger table.
type rawIngestRow struct {
	ID                     string  `gorm:"primaryKey;size:64"`
	SourceSystem           string  `gorm:"size:32;not null;uniqueIndex:idx_raw_ingests_source_record,priority:1"`
	ExternalRecordID       string  `gorm:"size:255;not null;uniqueIndex:idx_raw_ingests_source_record,priority:2"`
	Payload                string  `gorm:"type:text;not null"`
	ErrorMessage           *string `gorm:"type:text"`
	ProcessedUserID        *string `gorm:"size:64"`
	ProcessedPerformanceID *string `gorm:"size:64"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (rawIngestRow) TableName() string { return "raw_ingests" }

func (r rawIngestRow) toModel() model.RawIngest {
	return model.RawIngest{
		ID:                     r.ID,
		SourceSystem:           model.SourceSystem(r.SourceSystem),
		ExternalRecordID:       r.ExternalRecordID,
		Payload:                []byte(r.Payload),
		ErrorMessage:           deref(r.ErrorMessage),
		ProcessedUserID:        deref(r.ProcessedUserID),
		ProcessedPerformanceID: deref(r.ProcessedPerformanceID),
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

// totalsScale is the number of fractional digits kept for totals. SQLite
// has no exact numeric type, so values read back are rounded to this scale.
const totalsScale = 4

// performanceRow is the performances table.
type performanceRow struct {
	ID                string          `gorm:"primaryKey;size:64"`
	UserID            string          `gorm:"size:64;not null;uniqueIndex:idx_performances_user_period,priority:1"`
	Month             int             `gorm:"not null;uniqueIndex:idx_performances_user_period,priority:2"`
	Year              int             `gorm:"not null;uniqueIndex:idx_performances_user_period,priority:3"`
	LeadsCreated      decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	CarsSold          decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	VehicleValueTotal decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	ProfitTotal       decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	ServicesCompleted decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	HoursBilled       decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	HoursWorked       decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (performanceRow) TableName() string { return "performances" }

func (r performanceRow) toModel() model.Performance {
	return model.Performance{
		ID:                r.ID,
		UserID:            r.UserID,
		Month:             r.Month,
		Year:              r.Year,
		LeadsCreated:      r.LeadsCreated.Round(totalsScale),
		CarsSold:          r.CarsSold.Round(totalsScale),
		VehicleValueTotal: r.VehicleValueTotal.Round(totalsScale),
		ProfitTotal:       r.ProfitTotal.Round(totalsScale),
		ServicesCompleted: r.ServicesCompleted.Round(totalsScale),
		HoursBilled:       r.HoursBilled.Round(totalsScale),
		HoursWorked:       r.HoursWorked.Round(totalsScale),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// performanceListRow is one row of the leaderboard join.
type performanceListRow struct {
	Performance performanceRow `gorm:"embedded"`
	UserName    string
	UserRole    string
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

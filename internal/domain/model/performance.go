package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Role is a user's function inside a dealership.
type Role string

// Known roles.
const (
	RoleSalesRep   Role = "sales_rep"
	RoleServiceRep Role = "service_rep"
	RoleManager    Role = "manager"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSalesRep, RoleServiceRep, RoleManager:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// User is the subset of an account needed to attribute performance.
// ExternalUserID is unique within a dealership.
type User struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Role           Role         `json:"role"`
	DealershipID   string       `json:"dealershipId"`
	ExternalUserID string       `json:"externalUserId"`
	CRMSource      SourceSystem `json:"crmSource,omitempty"`
	OrganizationID string       `json:"organizationId,omitempty"`
}

// RawIngest is the audit and dedupe ledger row for one normalized record.
type RawIngest struct {
	ID                     string
	SourceSystem           SourceSystem
	ExternalRecordID       string
	Payload                json.RawMessage
	ErrorMessage           string
	ProcessedUserID        string
	ProcessedPerformanceID string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// RawIngestResolution is the single update applied to a ledger row after
// resolution or aggregation.
type RawIngestResolution struct {
	ErrorMessage           string
	ProcessedUserID        string
	ProcessedPerformanceID string
}

// Performance holds a user's running totals for one month.
type Performance struct {
	ID                string
	UserID            string
	Month             int
	Year              int
	LeadsCreated      decimal.Decimal
	CarsSold          decimal.Decimal
	VehicleValueTotal decimal.Decimal
	ProfitTotal       decimal.Decimal
	ServicesCompleted decimal.Decimal
	HoursBilled       decimal.Decimal
	HoursWorked       decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewPerformance builds a fresh aggregate seeded with m.
func NewPerformance(id, userID string, month, year int, m Metrics) Performance {
	p := Performance{ID: id, UserID: userID, Month: month, Year: year}
	p.Increment(m)
	return p
}

// Increment adds m to every running total.
func (p *Performance) Increment(m Metrics) {
	p.LeadsCreated = p.LeadsCreated.Add(decimalOf(m.LeadsCreated))
	p.CarsSold = p.CarsSold.Add(decimalOf(m.CarsSold))
	p.VehicleValueTotal = p.VehicleValueTotal.Add(decimalOf(m.VehicleValueTotal))
	p.ProfitTotal = p.ProfitTotal.Add(decimalOf(m.ProfitTotal))
	p.ServicesCompleted = p.ServicesCompleted.Add(decimalOf(m.ServicesCompleted))
	p.HoursBilled = p.HoursBilled.Add(decimalOf(m.HoursBilled))
	p.HoursWorked = p.HoursWorked.Add(decimalOf(m.HoursWorked))
}

// decimalOf converts f, treating non-finite values as zero.
func decimalOf(f float64) decimal.Decimal {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// Totals converts the running totals back into a Metrics bag.
func (p Performance) Totals() Metrics {
	return Metrics{
		LeadsCreated:      p.LeadsCreated.InexactFloat64(),
		CarsSold:          p.CarsSold.InexactFloat64(),
		VehicleValueTotal: p.VehicleValueTotal.InexactFloat64(),
		ProfitTotal:       p.ProfitTotal.InexactFloat64(),
		ServicesCompleted: p.ServicesCompleted.InexactFloat64(),
		HoursBilled:       p.HoursBilled.InexactFloat64(),
		HoursWorked:       p.HoursWorked.InexactFloat64(),
	}
}

// PerformanceRow is a Performance joined with its owner's display fields.
type PerformanceRow struct {
	Performance
	UserName string
	UserRole Role
}

// PerformanceQuery filters performance rows for a leaderboard read.
// An empty OrganizationID disables tenant filtering.
type PerformanceQuery struct {
	Month          int
	Year           int
	DealershipID   string
	Roles          []Role
	OrganizationID string
}

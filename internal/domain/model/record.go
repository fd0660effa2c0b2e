// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SourceSystem identifies the external CRM that sent a payload.
type SourceSystem string

// Supported source systems.
const (
	SourceElead     SourceSystem = "elead"
	SourceFortellis SourceSystem = "fortellis"
	SourceXtime     SourceSystem = "xtime"
	SourceDripJobs  SourceSystem = "dripjobs"
)

// Sources lists every supported source system in a stable order.
func Sources() []SourceSystem {
	return []SourceSystem{SourceElead, SourceFortellis, SourceXtime, SourceDripJobs}
}

// ParseSourceSystem converts a case-insensitive name into a SourceSystem.
func ParseSourceSystem(s string) (SourceSystem, error) {
	name := SourceSystem(strings.ToLower(strings.TrimSpace(s)))
	for _, src := range Sources() {
		if src == name {
			return src, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// Metrics is the sparse numeric bag carried by a normalized record.
// Absent values are zero.
type Metrics struct {
	LeadsCreated      float64 `json:"leadsCreated"`
	CarsSold          float64 `json:"carsSold"`
	VehicleValueTotal float64 `json:"vehicleValueTotal"`
	ProfitTotal       float64 `json:"profitTotal"`
	ServicesCompleted float64 `json:"servicesCompleted"`
	HoursBilled       float64 `json:"hoursBilled"`
	HoursWorked       float64 `json:"hoursWorked"`
}

// Add returns the field-wise sum of m and o.
func (m Metrics) Add(o Metrics) Metrics {
	return Metrics{
		LeadsCreated:      m.LeadsCreated + o.LeadsCreated,
		CarsSold:          m.CarsSold + o.CarsSold,
		VehicleValueTotal: m.VehicleValueTotal + o.VehicleValueTotal,
		ProfitTotal:       m.ProfitTotal + o.ProfitTotal,
		ServicesCompleted: m.ServicesCompleted + o.ServicesCompleted,
		HoursBilled:       m.HoursBilled + o.HoursBilled,
		HoursWorked:       m.HoursWorked + o.HoursWorked,
	}
}

// Record is the canonical performance record produced by every CRM adapter.
type Record struct {
	SourceSystem     SourceSystem    `json:"sourceSystem"`
	ExternalRecordID string          `json:"externalRecordId"` // unique per source system
	ExternalUserID   string          `json:"externalUserId"`
	DealershipID     string          `json:"dealershipId"`
	Month            int             `json:"month"`
	Year             int             `json:"year"`
	Metrics          Metrics         `json:"metrics"`
	RawPayload       json.RawMessage `json:"rawPayload"`
}

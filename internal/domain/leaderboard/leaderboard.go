// Package leaderboard ranks a dealership's monthly performance totals.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// podiumSize is the number of top entries shown separately.
const podiumSize = 3

// Reader lists performance rows joined with their owners.
type Reader interface {
	ListPerformance(ctx context.Context, q model.PerformanceQuery) ([]model.PerformanceRow, error)
}

// Query describes who is asking and what they asked for.
type Query struct {
	ViewerUserID string
	Role         model.Role
	DealershipID string
	Metric       Metric
	Department   Department
	// TenantScope is the viewer's organization. It only filters when the
	// engine has tenant scoping enabled.
	TenantScope string
}

// Entry is one user's accumulated totals for the period.
type Entry struct {
	UserID            string     `json:"userId"`
	Name              string     `json:"name"`
	Role              model.Role `json:"role"`
	LeadsCreated      float64    `json:"leadsCreated"`
	CarsSold          float64    `json:"carsSold"`
	VehicleValueTotal float64    `json:"vehicleValueTotal"`
	ProfitTotal       float64    `json:"profitTotal"`
	ServicesCompleted float64    `json:"servicesCompleted"`
	HoursBilled       float64    `json:"hoursBilled"`
	HoursWorked       float64    `json:"hoursWorked"`
	EfficiencyRate    float64    `json:"efficiencyRate"`
	SortValue         float64    `json:"sortValue"`
}

// Summary aggregates every entry of the view.
type Summary struct {
	TotalLeadsCreated      float64 `json:"totalLeadsCreated"`
	TotalProfit            float64 `json:"totalProfit"`
	TotalCarsSold          float64 `json:"totalCarsSold"`
	TotalVehicleValue      float64 `json:"totalVehicleValue"`
	TotalServicesCompleted float64 `json:"totalServicesCompleted"`
	AvgEfficiencyRate      float64 `json:"avgEfficiencyRate"`
}

// Response is a ranked, partitioned leaderboard.
type Response struct {
	Month       int        `json:"month"`
	Year        int        `json:"year"`
	Role        model.Role `json:"role"`
	Department  Department `json:"department"`
	Metric      Metric     `json:"metric"`
	Summary     Summary    `json:"summary"`
	Self        *Entry     `json:"self"`
	Podium      []Entry    `json:"podium"`
	Leaderboard []Entry    `json:"leaderboard"`
	// ServiceSecondaryLeaderboard ranks every entry by efficiency rate. It is
	// only set for service reps.
	ServiceSecondaryLeaderboard []Entry `json:"serviceSecondaryLeaderboard,omitempty"`
}

// Rows returns podium followed by leaderboard, the export order.
func (r Response) Rows() []Entry {
	out := make([]Entry, 0, len(r.Podium)+len(r.Leaderboard))
	out = append(out, r.Podium...)
	return append(out, r.Leaderboard...)
}

// Engine builds leaderboards from a Reader.
type Engine struct {
	reader        Reader
	now           func() time.Time
	tenantScoping bool
	logger        logger.Logger
}

// NewEngine creates an engine reading from r.
func NewEngine(r Reader, opts ...Option) *Engine {
	e := &Engine{
		reader: r,
		now:    time.Now,
		logger: logger.Get().Named("leaderboard"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetLeaderboard builds the current UTC month's leaderboard for q.
func (e *Engine) GetLeaderboard(ctx context.Context, q Query) (Response, error) {
	start := time.Now()
	if _, err := model.ParseRole(string(q.Role)); err != nil {
		return Response{}, err
	}
	metric, dept := normalize(q.Role, q.Metric, q.Department)
	now := e.now().UTC()
	month, year := int(now.Month()), now.Year()

	pq := model.PerformanceQuery{
		Month:        month,
		Year:         year,
		DealershipID: q.DealershipID,
		Roles:        dept.roles(),
	}
	if e.tenantScoping {
		pq.OrganizationID = q.TenantScope
	}
	rows, err := e.reader.ListPerformance(ctx, pq)
	if err != nil {
		metrics.RecordErrorByComponent("leaderboard", "read")
		e.logger.Error(ctx, "performance read failed",
			logger.String("dealership_id", q.DealershipID),
			logger.Error(err))
		return Response{}, fmt.Errorf("%w: %w", ErrRead, err)
	}

	entries := group(rows)
	ranked := rank(entries, metric)

	resp := Response{
		Month:       month,
		Year:        year,
		Role:        q.Role,
		Department:  dept,
		Metric:      metric,
		Summary:     summarize(entries),
		Podium:      ranked[:min(podiumSize, len(ranked))],
		Leaderboard: ranked[min(podiumSize, len(ranked)):],
	}
	for i := range ranked {
		if ranked[i].UserID == q.ViewerUserID {
			self := ranked[i]
			resp.Self = &self
			break
		}
	}
	if q.Role == model.RoleServiceRep {
		resp.ServiceSecondaryLeaderboard = rank(entries, MetricEfficiencyRate)
	}

	metrics.RecordLeaderboardRequest(string(metric))
	metrics.RecordLeaderboardEntries(len(ranked))
	metrics.RecordLeaderboardDuration(float64(time.Since(start).Microseconds()) / 1000)
	e.logger.Debug(ctx, "leaderboard built",
		logger.String("dealership_id", q.DealershipID),
		logger.String("metric", string(metric)),
		logger.String("department", string(dept)),
		logger.Int("entries", len(ranked)))
	return resp, nil
}

// group folds rows into one entry per user, in first-seen order.
func group(rows []model.PerformanceRow) []Entry {
	index := make(map[string]int, len(rows))
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		t := row.Totals()
		i, ok := index[row.UserID]
		if !ok {
			index[row.UserID] = len(entries)
			entries = append(entries, Entry{UserID: row.UserID, Name: row.UserName, Role: row.UserRole})
			i = len(entries) - 1
		}
		e := &entries[i]
		e.LeadsCreated += t.LeadsCreated
		e.CarsSold += t.CarsSold
		e.VehicleValueTotal += t.VehicleValueTotal
		e.ProfitTotal += t.ProfitTotal
		e.ServicesCompleted += t.ServicesCompleted
		e.HoursBilled += t.HoursBilled
		e.HoursWorked += t.HoursWorked
		e.EfficiencyRate = efficiency(e.HoursBilled, e.HoursWorked)
	}
	return entries
}

// efficiency is billed over worked hours as a percentage; 0 without work.
func efficiency(billed, worked float64) float64 {
	if worked <= 0 {
		return 0
	}
	return billed / worked * 100
}

// rank returns a sorted copy of entries with SortValue bound to metric.
// Ordering: value desc, then userID asc.
func rank(entries []Entry, metric Metric) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.SortValue = metric.value(e)
		out[i] = e
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortValue != out[j].SortValue {
			return out[i].SortValue > out[j].SortValue
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func summarize(entries []Entry) Summary {
	var s Summary
	var eff float64
	for _, e := range entries {
		s.TotalLeadsCreated += e.LeadsCreated
		s.TotalProfit += e.ProfitTotal
		s.TotalCarsSold += e.CarsSold
		s.TotalVehicleValue += e.VehicleValueTotal
		s.TotalServicesCompleted += e.ServicesCompleted
		eff += e.EfficiencyRate
	}
	if len(entries) > 0 {
		s.AvgEfficiencyRate = eff / float64(len(entries))
	}
	return s
}

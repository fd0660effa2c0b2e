package leaderboard

import (
	"fmt"
	"strings"

	"github.com/okian/arena/internal/domain/model"
)

// Metric is a rankable leaderboard column.
type Metric string

// Rankable metrics.
const (
	MetricLeadsCreated      Metric = "leads_created"
	MetricCarsSold          Metric = "cars_sold"
	MetricProfitTotal       Metric = "profit_total"
	MetricVehicleValueTotal Metric = "vehicle_value_total"
	MetricServicesCompleted Metric = "services_completed"
	MetricEfficiencyRate    Metric = "efficiency_rate"
)

// Metrics lists every rankable metric.
func Metrics() []Metric {
	return []Metric{
		MetricLeadsCreated, MetricCarsSold, MetricProfitTotal,
		MetricVehicleValueTotal, MetricServicesCompleted, MetricEfficiencyRate,
	}
}

// ParseMetric validates a metric name. The empty string is accepted and
// means "role default".
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return "", nil
	}
	for _, known := range Metrics() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// value reads the metric from e.
func (m Metric) value(e Entry) float64 {
	switch m {
	case MetricCarsSold:
		return e.CarsSold
	case MetricProfitTotal:
		return e.ProfitTotal
	case MetricVehicleValueTotal:
		return e.VehicleValueTotal
	case MetricServicesCompleted:
		return e.ServicesCompleted
	case MetricEfficiencyRate:
		return e.EfficiencyRate
	default:
		return e.LeadsCreated
	}
}

// Department selects which roles a leaderboard covers.
type Department string

// Departments.
const (
	DepartmentSales   Department = "sales"
	DepartmentService Department = "service"
	DepartmentAll     Department = "all"
)

// ParseDepartment validates a department name. The empty string is accepted
// and means "role default".
func ParseDepartment(s string) (Department, error) {
	switch d := Department(strings.ToLower(strings.TrimSpace(s))); d {
	case "", DepartmentSales, DepartmentService, DepartmentAll:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDepartment, s)
}

// roles maps a department to the user roles it ranks.
func (d Department) roles() []model.Role {
	switch d {
	case DepartmentSales:
		return []model.Role{model.RoleSalesRep}
	case DepartmentService:
		return []model.Role{model.RoleServiceRep}
	default:
		return []model.Role{model.RoleSalesRep, model.RoleServiceRep}
	}
}

var (
	salesMetrics   = []Metric{MetricLeadsCreated, MetricCarsSold, MetricProfitTotal, MetricVehicleValueTotal} //nolint:gochecknoglobals // read-only table
	serviceMetrics = []Metric{MetricServicesCompleted, MetricEfficiencyRate, MetricProfitTotal}                   //nolint:gochecknoglobals // read-only table
)

// normalize applies the role's metric and department restrictions. Metrics
// outside a rep's allowed set fall back to the role default.
func normalize(role model.Role, metric Metric, dept Department) (Metric, Department) {
	switch role {
	case model.RoleSalesRep:
		return restrict(metric, salesMetrics), DepartmentSales
	case model.RoleServiceRep:
		return restrict(metric, serviceMetrics), DepartmentService
	default:
		if metric == "" {
			metric = MetricLeadsCreated
		}
		if dept == "" {
			dept = DepartmentAll
		}
		return metric, dept
	}
}

// restrict returns metric when allowed, else the first allowed metric.
func restrict(metric Metric, allowed []Metric) Metric {
	for _, m := range allowed {
		if m == metric {
			return metric
		}
	}
	return allowed[0]
}

package leaderboard

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// csvHeader is the fixed export header.
var csvHeader = []string{ //nolint:gochecknoglobals // read-only table
	"name", "role", "leads_created", "cars_sold", "vehicle_value_total",
	"profit_total", "services_completed", "hours_billed", "hours_worked", "efficiency_rate",
}

// WriteCSV renders rows under the fixed header. Data fields are always
// double-quoted with inner quotes doubled; rows end with "\n" except the last.
func WriteCSV(w io.Writer, rows []Entry) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(csvHeader, ",")); err != nil {
		return err
	}
	for _, r := range rows {
		fields := []string{
			r.Name,
			string(r.Role),
			count(r.LeadsCreated),
			count(r.CarsSold),
			fixed2(r.VehicleValueTotal),
			fixed2(r.ProfitTotal),
			count(r.ServicesCompleted),
			fixed2(r.HoursBilled),
			fixed2(r.HoursWorked),
			fixed2(r.EfficiencyRate),
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		for i, f := range fields {
			if i > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(quote(f)); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Filename is the suggested export name for a period.
func Filename(month, year int) string {
	return fmt.Sprintf("arena-leaderboard-%04d-%02d.csv", year, month)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// fixed2 rounds half away from zero to two places.
func fixed2(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "0.00"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

func count(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

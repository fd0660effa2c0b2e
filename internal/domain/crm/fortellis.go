package crm

import (
	"time"

	"github.com/okian/arena/internal/domain/model"
)

var fortellisEnvelope = schema{ //nolint:gochecknoglobals // alias table
	str(fieldEventID, "", "eventId", "event_id"),
	str(fieldDealershipID, ruleRequired, "dealerId", "dealer_id"),
}

var fortellisRecord = schema{ //nolint:gochecknoglobals // alias table
	str(fieldRecordID, "", "id"),
	str(fieldExternalUserID, ruleRequired, "userExternalId", "user_external_id"),
	integer(fieldMonth, ruleMonth, "period.month"),
	integer(fieldYear, ruleYear, "period.year"),
	str(fieldTimestamp, "", "period.timestamp"),
	number(fieldCarsSold, "sales.units"),
	number(fieldVehicleValueTotal, "sales.totalVehicleValue"),
	number(fieldProfitTotal, "sales.grossProfit"),
	number(fieldServicesCompleted, "service.completed"),
	number(fieldHoursBilled, "service.hoursBilled"),
	number(fieldHoursWorked, "service.hoursWorked"),
	number(fieldServiceProfit, "service.profit"),
}

// fortellisAdapter handles Fortellis DMS webhooks. Sales and service profit
// arrive separately and are summed into one profit total.
type fortellisAdapter struct {
	now func() time.Time
}

func (a *fortellisAdapter) Source() model.SourceSystem { return model.SourceFortellis }

func (a *fortellisAdapter) Normalize(payload []byte) ([]model.Record, error) {
	src := a.Source()
	obj, err := decodeObject(src, payload)
	if err != nil {
		return nil, err
	}
	env, err := resolve(src, "", obj, fortellisEnvelope)
	if err != nil {
		return nil, err
	}
	if !obj.has("records") {
		return nil, invalid(src, "records", ruleRequired, "")
	}
	items, err := recordList(src, obj, "records")
	if err != nil {
		return nil, err
	}

	out := make([]model.Record, 0, len(items))
	for i, item := range items {
		f, err := resolve(src, recordPrefix(i), item, fortellisRecord)
		if err != nil {
			return nil, err
		}
		rec := buildRecord(src, env.str(fieldEventID), i, f, env.str(fieldDealershipID), item, a.now)
		rec.Metrics.ProfitTotal = finite(rec.Metrics.ProfitTotal + f.num(fieldServiceProfit))
		out = append(out, rec)
	}
	return out, nil
}

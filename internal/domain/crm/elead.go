package crm

import (
	"time"

	"github.com/okian/arena/internal/domain/model"
)

var eleadEnvelope = schema{ //nolint:gochecknoglobals // alias table
	str(fieldEventID, "", "event_id", "eventId"),
}

var eleadRecord = schema{ //nolint:gochecknoglobals // alias table
	str(fieldRecordID, "", "record_id", "recordId"),
	str(fieldExternalUserID, ruleRequired, "external_user_id", "externalUserId"),
	str(fieldDealershipID, ruleRequired, "dealership_id", "dealershipId"),
	integer(fieldMonth, ruleMonth, "month"),
	integer(fieldYear, ruleYear, "year"),
	str(fieldTimestamp, "", "timestamp"),
	number(fieldLeadsCreated, "leads_created", "leadsCreated"),
	number(fieldCarsSold, "cars_sold", "carsSold"),
	number(fieldVehicleValueTotal, "vehicle_value_total", "vehicleValueTotal"),
	number(fieldProfitTotal, "profit_total", "profitTotal"),
	number(fieldServicesCompleted, "services_completed", "servicesCompleted"),
	number(fieldHoursBilled, "hours_billed", "hoursBilled"),
	number(fieldHoursWorked, "hours_worked", "hoursWorked"),
}

// eleadAdapter handles Elead CRM webhooks. Each record names its own dealership.
type eleadAdapter struct {
	now func() time.Time
}

func (a *eleadAdapter) Source() model.SourceSystem { return model.SourceElead }

func (a *eleadAdapter) Normalize(payload []byte) ([]model.Record, error) {
	src := a.Source()
	obj, err := decodeObject(src, payload)
	if err != nil {
		return nil, err
	}
	env, err := resolve(src, "", obj, eleadEnvelope)
	if err != nil {
		return nil, err
	}
	items, err := recordList(src, obj, "records")
	if err != nil {
		return nil, err
	}

	out := make([]model.Record, 0, len(items))
	for i, item := range items {
		f, err := resolve(src, recordPrefix(i), item, eleadRecord)
		if err != nil {
			return nil, err
		}
		out = append(out, buildRecord(src, env.str(fieldEventID), i, f, f.str(fieldDealershipID), item, a.now))
	}
	return out, nil
}

package crm

import (
	"errors"
	"time"

	"github.com/okian/arena/internal/domain/model"
)

var dripJobsDealershipAliases = []string{ //nolint:gochecknoglobals // alias table
	"dealership_id", "dealershipId", "dealerId", "storeId", "store_id",
}

var dripJobsEnvelope = schema{ //nolint:gochecknoglobals // alias table
	str(fieldEventID, "", "eventId", "event_id"),
	str(fieldDealershipID, "", dripJobsDealershipAliases...),
}

var dripJobsRecord = schema{ //nolint:gochecknoglobals // alias table
	str(fieldRecordID, "", "record_id", "recordId"),
	str(fieldExternalUserID, ruleRequired, "external_user_id", "externalUserId", "user_id", "userId"),
	str(fieldDealershipID, "", dripJobsDealershipAliases...),
	integer(fieldMonth, ruleMonth, "month", "period.month"),
	integer(fieldYear, ruleYear, "year", "period.year"),
	str(fieldTimestamp, "", "timestamp", "period.timestamp"),
	number(fieldLeadsCreated, "leadsCreated", "leads_created"),
	number(fieldCarsSold, "carsSold", "cars_sold"),
	number(fieldVehicleValueTotal, "vehicleValueTotal", "vehicle_value_total"),
	number(fieldProfitTotal, "profitTotal", "profit_total"),
	number(fieldServicesCompleted, "servicesCompleted", "services_completed"),
	number(fieldHoursBilled, "hoursBilled", "hours_billed"),
	number(fieldHoursWorked, "hoursWorked", "hours_worked"),
}

// dripJobsFlat is the single-record shape sent by webhook automation tools
// that cannot nest records.
var dripJobsFlat = schema{ //nolint:gochecknoglobals // alias table
	ident(fieldRecordID, "record_id", "recordId", "job_id", "job_proposal_number"),
	str(fieldExternalUserID, ruleRequired,
		"external_user_id", "externalUserId", "user_id", "userId",
		"sales_person_id", "salesperson_id", "rep_id", "assigned_to_id"),
	str(fieldDealershipID, ruleRequired, dripJobsDealershipAliases...),
	integer(fieldMonth, ruleMonth, "month"),
	integer(fieldYear, ruleYear, "year"),
	str(fieldTimestamp, "", "timestamp", "time"),
	number(fieldVehicleValueTotal,
		"job_amount", "jobAmount", "amount", "value", "vehicle_value_total", "vehicleValueTotal"),
	number(fieldCarsSold, "cars_sold", "carsSold"),
	number(fieldLeadsCreated, "leads_created", "leadsCreated"),
	number(fieldProfitTotal, "profit_total", "profitTotal"),
}

// dripJobsAdapter handles DripJobs webhooks. Payloads carry either a records
// list (or a single record object) or one flat record.
type dripJobsAdapter struct {
	now func() time.Time
}

func (a *dripJobsAdapter) Source() model.SourceSystem { return model.SourceDripJobs }

func (a *dripJobsAdapter) Normalize(payload []byte) ([]model.Record, error) {
	src := a.Source()
	obj, err := decodeObject(src, payload)
	if err != nil {
		return nil, err
	}
	env, err := resolve(src, "", obj, dripJobsEnvelope)
	if err != nil {
		return nil, err
	}
	items, err := recordList(src, obj, "records")
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		if items, err = recordList(src, obj, "record"); err != nil {
			return nil, err
		}
	}
	if len(items) == 0 {
		return a.normalizeFlat(obj, env)
	}

	out := make([]model.Record, 0, len(items))
	for i, item := range items {
		prefix := recordPrefix(i)
		f, err := resolve(src, prefix, item, dripJobsRecord)
		if err != nil {
			return nil, err
		}
		dealershipID := f.str(fieldDealershipID)
		if dealershipID == "" {
			dealershipID = env.str(fieldDealershipID)
		}
		if dealershipID == "" {
			return nil, invalid(src, joinPath(prefix, fieldDealershipID), ruleRequired, "no dealership id on the record or the payload")
		}
		out = append(out, buildRecord(src, env.str(fieldEventID), i, f, dealershipID, item, a.now))
	}
	return out, nil
}

func (a *dripJobsAdapter) normalizeFlat(obj object, env fieldSet) ([]model.Record, error) {
	f, err := resolve(a.Source(), "", obj, dripJobsFlat)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) && verr.Constraint == ruleRequired {
			verr.Detail = "payload must include records or a flat record with a dealership id and a user id; " + verr.Detail
		}
		return nil, err
	}
	rec := buildRecord(a.Source(), env.str(fieldEventID), 0, f, f.str(fieldDealershipID), obj, a.now)
	return []model.Record{rec}, nil
}

package crm

import (
	"time"

	"github.com/okian/arena/internal/domain/model"
)

var xtimeEnvelope = schema{ //nolint:gochecknoglobals // alias table
	str(fieldEventID, "", "eventId", "event_id"),
	str(fieldDealershipID, ruleRequired, "storeId", "store_id"),
}

var xtimeRecord = schema{ //nolint:gochecknoglobals // alias table
	str(fieldRecordID, "", "entryId", "entry_id"),
	str(fieldExternalUserID, ruleRequired, "externalUserId", "external_user_id"),
	integer(fieldMonth, ruleMonth, "month"),
	integer(fieldYear, ruleYear, "year"),
	str(fieldTimestamp, "", "timestamp"),
	number(fieldServicesCompleted, "servicesCompleted", "services_completed"),
	number(fieldHoursBilled, "hoursBilled", "hours_billed"),
	number(fieldHoursWorked, "hoursWorked", "hours_worked"),
	number(fieldProfitTotal, "serviceProfit", "service_profit"),
}

// xtimeAdapter handles Xtime service-lane webhooks. The store id on the
// envelope scopes every record.
type xtimeAdapter struct {
	now func() time.Time
}

func (a *xtimeAdapter) Source() model.SourceSystem { return model.SourceXtime }

func (a *xtimeAdapter) Normalize(payload []byte) ([]model.Record, error) {
	src := a.Source()
	obj, err := decodeObject(src, payload)
	if err != nil {
		return nil, err
	}
	env, err := resolve(src, "", obj, xtimeEnvelope)
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
		f, err := resolve(src, recordPrefix(i), item, xtimeRecord)
		if err != nil {
			return nil, err
		}
		out = append(out, buildRecord(src, env.str(fieldEventID), i, f, env.str(fieldDealershipID), item, a.now))
	}
	return out, nil
}

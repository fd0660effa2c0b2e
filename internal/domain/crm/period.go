package crm

import (
	"fmt"
	"time"

	"github.com/okian/arena/internal/domain/model"
)

// timestampLayouts are tried in order when a record carries a timestamp.
var timestampLayouts = []string{ //nolint:gochecknoglobals // read-only table
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// resolvePeriod picks the record's month and year. Explicit month and year win,
// then a parseable timestamp (in UTC), then the current UTC month.
func resolvePeriod(month, year int, timestamp string, now func() time.Time) (int, int) {
	if month > 0 && year > 0 {
		return month, year
	}
	if timestamp != "" {
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, timestamp); err == nil {
				ts = ts.UTC()
				return int(ts.Month()), ts.Year()
			}
		}
	}
	t := now().UTC()
	return int(t.Month()), t.Year()
}

// recordID returns the sender's id, or a deterministic id derived from the
// batch position so an identical redelivery maps onto the same ledger rows.
func recordID(id, eventID string, src model.SourceSystem, externalUserID string, month, year, index int) string {
	if id != "" {
		return id
	}
	if eventID == "" {
		eventID = string(src)
	}
	return fmt.Sprintf("%s-%s-%d-%d-%d", eventID, externalUserID, month, year, index)
}

// buildRecord assembles a record from resolved standard fields.
func buildRecord(src model.SourceSystem, eventID string, index int, f fieldSet, dealershipID string, raw object, now func() time.Time) model.Record {
	month, year := resolvePeriod(f.int(fieldMonth), f.int(fieldYear), f.str(fieldTimestamp), now)
	userID := f.str(fieldExternalUserID)
	return model.Record{
		SourceSystem:     src,
		ExternalRecordID: recordID(f.str(fieldRecordID), eventID, src, userID, month, year, index),
		ExternalUserID:   userID,
		DealershipID:     dealershipID,
		Month:            month,
		Year:             year,
		Metrics:          f.metrics(),
		RawPayload:       rawJSON(raw),
	}
}

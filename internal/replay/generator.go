package replay

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

// Ranges for generated metrics.
const (
	maxLeads        = 12
	maxCars         = 4
	maxVehicleValue = 60_000
	maxProfit       = 5_000
	maxServices     = 10
	maxHours        = 40
)

// randomInt returns a uniform integer in [0, n) using crypto/rand.
func randomInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// randomMoney returns a value in [0, n) with two decimals.
func randomMoney(n int) float64 {
	return float64(randomInt(n*100)) / 100
}

type record struct {
	id      string
	user    string
	leads   float64
	cars    float64
	value   float64
	profit  float64
	svc     float64
	billed  float64
	worked  float64
	svcCash float64
}

// generateBatches builds config.Batches payloads, cycling through the
// configured sources. Every record falls in the current UTC month.
func generateBatches(ctx context.Context, config *Config, stats *Stats) ([]Batch, error) {
	if len(config.Sources) == 0 || len(config.Users) == 0 {
		return nil, fmt.Errorf("replay needs at least one source and one user")
	}
	logger.Get().Info(ctx, "generating webhook batches",
		logger.Int("batches", config.Batches),
		logger.Int("recordsPerBatch", config.RecordsPerBatch))

	now := time.Now().UTC()
	month, year := int(now.Month()), now.Year()

	batches := make([]Batch, 0, config.Batches)
	for i := 0; i < config.Batches; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		src := config.Sources[i%len(config.Sources)]
		records := make([]record, config.RecordsPerBatch)
		for j := range records {
			records[j] = randomRecord(config.Users[randomInt(len(config.Users))])
		}
		b, err := buildBatch(src, config.DealershipID, month, year, records)
		if err != nil {
			return nil, fmt.Errorf("build %s batch %d: %w", src, i, err)
		}
		batches = append(batches, b)
		stats.RecordsGenerated += b.Records
		stats.LeadsGenerated += b.LeadsCreated
		stats.ServicesGenerated += b.ServicesCompleted
	}
	stats.BatchesGenerated = len(batches)
	logger.Get().Info(ctx, "generated batches", logger.Int("count", len(batches)), logger.Int("records", stats.RecordsGenerated))
	return batches, nil
}

func randomRecord(user string) record {
	return record{
		id:      uuid.NewString(),
		user:    user,
		leads:   float64(randomInt(maxLeads)),
		cars:    float64(randomInt(maxCars)),
		value:   randomMoney(maxVehicleValue),
		profit:  randomMoney(maxProfit),
		svc:     float64(randomInt(maxServices)),
		billed:  float64(randomInt(maxHours)),
		worked:  float64(randomInt(maxHours) + 1),
		svcCash: randomMoney(maxProfit),
	}
}

// buildBatch renders records in the wire shape of src.
func buildBatch(src model.SourceSystem, dealershipID string, month, year int, records []record) (Batch, error) {
	eventID := "replay-" + uuid.NewString()
	b := Batch{Source: src, EventID: eventID, Records: len(records)}

	items := make([]map[string]any, 0, len(records))
	var payload map[string]any
	switch src {
	case model.SourceElead:
		for _, r := range records {
			items = append(items, map[string]any{
				"record_id":           r.id,
				"external_user_id":    r.user,
				"dealership_id":       dealershipID,
				"month":               month,
				"year":                year,
				"leads_created":       r.leads,
				"cars_sold":           r.cars,
				"vehicle_value_total": r.value,
				"profit_total":        r.profit,
			})
			b.LeadsCreated += r.leads
		}
		payload = map[string]any{"event_id": eventID, "records": items}
	case model.SourceFortellis:
		for _, r := range records {
			items = append(items, map[string]any{
				"id":             r.id,
				"userExternalId": r.user,
				"period":         map[string]any{"month": month, "year": year},
				"sales":          map[string]any{"units": r.cars, "totalVehicleValue": r.value, "grossProfit": r.profit},
				"service":        map[string]any{"completed": r.svc, "hoursBilled": r.billed, "hoursWorked": r.worked, "profit": r.svcCash},
			})
			b.ServicesCompleted += r.svc
		}
		payload = map[string]any{"eventId": eventID, "dealerId": dealershipID, "records": items}
	case model.SourceXtime:
		for _, r := range records {
			items = append(items, map[string]any{
				"entryId":           r.id,
				"externalUserId":    r.user,
				"month":             month,
				"year":              year,
				"servicesCompleted": r.svc,
				"hoursBilled":       r.billed,
				"hoursWorked":       r.worked,
				"serviceProfit":     r.svcCash,
			})
			b.ServicesCompleted += r.svc
		}
		payload = map[string]any{"eventId": eventID, "storeId": dealershipID, "records": items}
	case model.SourceDripJobs:
		for _, r := range records {
			items = append(items, map[string]any{
				"recordId":          r.id,
				"userId":            r.user,
				"month":             month,
				"year":              year,
				"leadsCreated":      r.leads,
				"carsSold":          r.cars,
				"vehicleValueTotal": r.value,
				"profitTotal":       r.profit,
			})
			b.LeadsCreated += r.leads
		}
		payload = map[string]any{"eventId": eventID, "dealershipId": dealershipID, "records": items}
	default:
		return Batch{}, fmt.Errorf("%w: %q", model.ErrUnknownSource, src)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Batch{}, err
	}
	b.Payload = raw
	return b, nil
}

package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/crm"
	"github.com/okian/arena/internal/domain/ingest"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// faultyStore fails IncrementPerformance once armed.
type faultyStore struct {
	*repository.MemoryStore
	incrementErr error
}

func (f *faultyStore) IncrementPerformance(ctx context.Context, userID string, month, year int, m model.Metrics) (model.Performance, error) {
	if f.incrementErr != nil {
		return model.Performance{}, f.incrementErr
	}
	return f.MemoryStore.IncrementPerformance(ctx, userID, month, year, m)
}

func eleadRecord(recordID, user string, leads, profit float64) string {
	return fmt.Sprintf(`{"record_id":%q,"external_user_id":%q,"dealership_id":"d-1","month":3,"year":2025,"leads_created":%v,"profit_total":%v}`,
		recordID, user, leads, profit)
}

func eleadPayload(records ...string) []byte {
	return []byte(`{"event_id":"evt","records":[` + strings.Join(records, ",") + `]}`)
}

func seed(ctx context.Context, store *repository.MemoryStore) model.User {
	u, err := store.SaveUser(ctx, model.User{
		Name:           "Ana",
		Role:           model.RoleSalesRep,
		DealershipID:   "d-1",
		ExternalUserID: "u-1",
		OrganizationID: "org-1",
	})
	So(err, ShouldBeNil)
	return u
}

func totals(ctx context.Context, store *repository.MemoryStore) []model.PerformanceRow {
	rows, err := store.ListPerformance(ctx, model.PerformanceQuery{Month: 3, Year: 2025, DealershipID: "d-1"})
	So(err, ShouldBeNil)
	return rows
}

func TestPipeline(t *testing.T) {
	Convey("Given a pipeline over a memory store with one user", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		user := seed(ctx, store)
		p := ingest.NewPipeline(store)

		Convey("When a batch is ingested", func() {
			payload := eleadPayload(eleadRecord("r-1", "u-1", 2, 100), eleadRecord("r-2", "u-1", 3, 50.5))
			res, err := p.Ingest(ctx, model.SourceElead, payload, "")

			Convey("Then every record is processed into one monthly total", func() {
				So(err, ShouldBeNil)
				So(res, ShouldResemble, ingest.Result{SourceSystem: model.SourceElead, TotalRecords: 2, ProcessedRecords: 2})
				rows := totals(ctx, store)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].UserID, ShouldEqual, user.ID)
				So(rows[0].LeadsCreated.String(), ShouldEqual, "5")
				So(rows[0].ProfitTotal.String(), ShouldEqual, "150.5")
			})

			Convey("And the ledger rows point at the user and the total", func() {
				raw, err := store.GetRawIngest(ctx, model.SourceElead, "r-1")
				So(err, ShouldBeNil)
				So(raw.ProcessedUserID, ShouldEqual, user.ID)
				So(raw.ProcessedPerformanceID, ShouldEqual, totals(ctx, store)[0].ID)
				So(raw.ErrorMessage, ShouldBeEmpty)
			})

			Convey("And a redelivery changes nothing", func() {
				again, err := p.Ingest(ctx, model.SourceElead, payload, "")
				So(err, ShouldBeNil)
				So(again.TotalRecords, ShouldEqual, 2)
				So(again.ProcessedRecords, ShouldEqual, 0)
				So(again.SkippedDuplicates, ShouldEqual, 2)
				So(totals(ctx, store)[0].LeadsCreated.String(), ShouldEqual, "5")
			})
		})

		Convey("When a metric is out of the float64 range", func() {
			payload := []byte(`{"records":[{"record_id":"r-big","external_user_id":"u-1","dealership_id":"d-1","month":3,"year":2025,"cars_sold":"1e400","leads_created":4}]}`)
			res, err := p.Ingest(ctx, model.SourceElead, payload, "")

			Convey("Then the record is processed with that metric at zero", func() {
				So(err, ShouldBeNil)
				So(res.ProcessedRecords, ShouldEqual, 1)
				rows := totals(ctx, store)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].CarsSold.String(), ShouldEqual, "0")
				So(rows[0].LeadsCreated.String(), ShouldEqual, "4")
				raw, err := store.GetRawIngest(ctx, model.SourceElead, "r-big")
				So(err, ShouldBeNil)
				So(raw.ProcessedUserID, ShouldEqual, user.ID)
			})
		})

		Convey("When a batch repeats a record id", func() {
			res, err := p.Ingest(ctx, model.SourceElead, eleadPayload(eleadRecord("r-1", "u-1", 2, 0), eleadRecord("r-1", "u-1", 2, 0)), "")
			So(err, ShouldBeNil)
			So(res.ProcessedRecords, ShouldEqual, 1)
			So(res.SkippedDuplicates, ShouldEqual, 1)
			So(totals(ctx, store)[0].LeadsCreated.String(), ShouldEqual, "2")
		})

		Convey("When the user is unknown", func() {
			res, err := p.Ingest(ctx, model.SourceElead, eleadPayload(eleadRecord("r-9", "ghost", 7, 0)), "")

			Convey("Then the record is ledgered with an error and no total is created", func() {
				So(err, ShouldBeNil)
				So(res.UnmatchedUsers, ShouldEqual, 1)
				So(res.ProcessedRecords, ShouldEqual, 0)
				So(totals(ctx, store), ShouldBeEmpty)
				raw, err := store.GetRawIngest(ctx, model.SourceElead, "r-9")
				So(err, ShouldBeNil)
				So(raw.ErrorMessage, ShouldEqual, "no user found for external_user_id=ghost dealership_id=d-1")
				So(raw.ProcessedUserID, ShouldBeEmpty)
			})

			Convey("And a redelivery is a duplicate, not a second miss", func() {
				again, err := p.Ingest(ctx, model.SourceElead, eleadPayload(eleadRecord("r-9", "ghost", 7, 0)), "")
				So(err, ShouldBeNil)
				So(again.SkippedDuplicates, ShouldEqual, 1)
				So(again.UnmatchedUsers, ShouldEqual, 0)
			})
		})

		Convey("When the batch is scoped to a tenant", func() {
			other, err := p.Ingest(ctx, model.SourceElead, eleadPayload(eleadRecord("r-1", "u-1", 1, 0)), "org-2")
			So(err, ShouldBeNil)
			So(other.UnmatchedUsers, ShouldEqual, 1)

			own, err := p.Ingest(ctx, model.SourceElead, eleadPayload(eleadRecord("r-2", "u-1", 1, 0)), "org-1")
			So(err, ShouldBeNil)
			So(own.ProcessedRecords, ShouldEqual, 1)
		})

		Convey("When a later record fails validation", func() {
			bad := `{"record_id":"r-3","external_user_id":"u-1","dealership_id":"d-1","month":13,"year":2025}`
			_, err := p.Ingest(ctx, model.SourceElead, eleadPayload(eleadRecord("r-1", "u-1", 1, 0), bad), "")

			Convey("Then nothing is written", func() {
				So(errors.Is(err, crm.ErrValidation), ShouldBeTrue)
				counts, cerr := store.Counts(ctx)
				So(cerr, ShouldBeNil)
				So(counts.RawIngests, ShouldEqual, 0)
				So(totals(ctx, store), ShouldBeEmpty)
			})
		})

		Convey("When the source is unknown", func() {
			_, err := p.Ingest(ctx, model.SourceSystem("salesforce"), []byte(`{}`), "")
			So(errors.Is(err, model.ErrUnknownSource), ShouldBeTrue)
		})
	})

	Convey("Given a store whose increments fail", t, func() {
		ctx := context.Background()
		mem := repository.NewMemoryStore()
		seed(ctx, mem)
		cause := errors.New("connection reset")
		store := &faultyStore{MemoryStore: mem, incrementErr: cause}
		p := ingest.NewPipeline(store)

		res, err := p.Ingest(ctx, model.SourceElead, eleadPayload(eleadRecord("r-1", "u-1", 1, 0), eleadRecord("r-2", "u-1", 1, 0)), "")

		Convey("Then the batch aborts with a storage error naming the step", func() {
			So(errors.Is(err, ingest.ErrStorage), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			var serr *ingest.StorageError
			So(errors.As(err, &serr), ShouldBeTrue)
			So(serr.Op, ShouldEqual, "ingest.increment_performance")
			So(res.ProcessedRecords, ShouldEqual, 0)
		})

		Convey("And the second record was never claimed", func() {
			_, err := mem.GetRawIngest(ctx, model.SourceElead, "r-2")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCommutativeAggregation(t *testing.T) {
	Convey("Given two batches for the same user and month", t, func() {
		ctx := context.Background()
		a := eleadPayload(eleadRecord("a-1", "u-1", 1, 10.1), eleadRecord("a-2", "u-1", 2, 0.2))
		b := eleadPayload(eleadRecord("b-1", "u-1", 4, 99.99))

		run := func(order ...[]byte) model.PerformanceRow {
			store := repository.NewMemoryStore()
			seed(ctx, store)
			p := ingest.NewPipeline(store)
			for _, payload := range order {
				_, err := p.Ingest(ctx, model.SourceElead, payload, "")
				So(err, ShouldBeNil)
			}
			rows := totals(ctx, store)
			So(rows, ShouldHaveLength, 1)
			return rows[0]
		}

		Convey("Then the totals do not depend on arrival order", func() {
			ab := run(a, b)
			ba := run(b, a)
			So(ab.LeadsCreated.String(), ShouldEqual, ba.LeadsCreated.String())
			So(ab.ProfitTotal.String(), ShouldEqual, ba.ProfitTotal.String())
			So(ab.ProfitTotal.String(), ShouldEqual, "110.29")
		})
	})
}

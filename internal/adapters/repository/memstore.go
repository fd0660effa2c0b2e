package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/arena/internal/domain/dedupe"
	"github.com/okian/arena/internal/domain/model"
)

type userKey struct {
	dealershipID   string
	externalUserID string
}

type periodKey struct {
	userID string
	month  int
	year   int
}

// MemoryStore keeps everything in process memory. The dedupe index enforces
// ledger uniqueness and a single mutex serializes increments.
type MemoryStore struct {
	cfg settings

	mu           sync.RWMutex
	ledgerKeys   dedupe.Deduper
	raw          map[string]model.RawIngest
	rawByKey     map[dedupe.Key]string
	users        map[string]model.User
	usersByKey   map[userKey]string
	performances map[periodKey]*model.Performance
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		cfg:          defaultSettings(),
		ledgerKeys:   dedupe.NewInMemoryDeduper(),
		raw:          make(map[string]model.RawIngest),
		rawByKey:     make(map[dedupe.Key]string),
		users:        make(map[string]model.User),
		usersByKey:   make(map[userKey]string),
		performances: make(map[periodKey]*model.Performance),
	}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	return s
}

// InsertRawIngest creates the ledger row. The dedupe index rejects a second
// (source, external record id) under the store lock.
func (s *MemoryStore) InsertRawIngest(ctx context.Context, rec model.Record) (model.RawIngest, error) {
	defer observe("insert_raw_ingest", time.Now())

	key := dedupe.Key{Source: rec.SourceSystem, RecordID: rec.ExternalRecordID}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledgerKeys.SeenAndRecord(ctx, key) {
		return model.RawIngest{}, fmt.Errorf("%w: %s", model.ErrDuplicateRecord, key)
	}
	now := s.cfg.now()
	row := model.RawIngest{
		ID:               s.cfg.newID(),
		SourceSystem:     rec.SourceSystem,
		ExternalRecordID: rec.ExternalRecordID,
		Payload:          append([]byte(nil), rec.RawPayload...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.raw[row.ID] = row
	s.rawByKey[key] = row.ID
	return row, nil
}

// UpdateRawIngest applies the single resolution update to a ledger row.
func (s *MemoryStore) UpdateRawIngest(_ context.Context, id string, res model.RawIngestResolution) error {
	defer observe("update_raw_ingest", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.raw[id]
	if !ok {
		return fmt.Errorf("update raw ingest %s: not found", id)
	}
	row.ErrorMessage = res.ErrorMessage
	row.ProcessedUserID = res.ProcessedUserID
	row.ProcessedPerformanceID = res.ProcessedPerformanceID
	row.UpdatedAt = s.cfg.now()
	s.raw[id] = row
	return nil
}

// GetRawIngest reads a ledger row by its natural key.
func (s *MemoryStore) GetRawIngest(_ context.Context, src model.SourceSystem, externalRecordID string) (model.RawIngest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.rawByKey[dedupe.Key{Source: src, RecordID: externalRecordID}]
	if !ok {
		return model.RawIngest{}, fmt.Errorf("get raw ingest %s/%s: not found", src, externalRecordID)
	}
	return s.raw[id], nil
}

// SaveUser inserts u or updates the user already holding its
// (dealership, external user id) pair. The stored user is returned.
func (s *MemoryStore) SaveUser(_ context.Context, u model.User) (model.User, error) {
	if err := validateUser(u); err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey{dealershipID: u.DealershipID, externalUserID: u.ExternalUserID}
	if id, ok := s.usersByKey[key]; ok {
		u.ID = id
	} else if u.ID == "" {
		u.ID = s.cfg.newID()
	}
	s.users[u.ID] = u
	s.usersByKey[key] = u.ID
	return u, nil
}

// FindUserByExternalID resolves the user a record belongs to.
func (s *MemoryStore) FindUserByExternalID(_ context.Context, dealershipID, externalUserID, organizationID string) (model.User, error) {
	defer observe("find_user", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByKey[userKey{dealershipID: dealershipID, externalUserID: externalUserID}]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	u := s.users[id]
	if organizationID != "" && u.OrganizationID != organizationID {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

// IncrementPerformance creates or adds to the (user, month, year) row while
// holding the write lock.
func (s *MemoryStore) IncrementPerformance(_ context.Context, userID string, month, year int, m model.Metrics) (model.Performance, error) {
	defer observe("increment_performance", time.Now())

	key := periodKey{userID: userID, month: month, year: year}
	now := s.cfg.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.performances[key]
	if !ok {
		fresh := model.NewPerformance(s.cfg.newID(), userID, month, year, m)
		fresh.CreatedAt, fresh.UpdatedAt = now, now
		s.performances[key] = &fresh
		return fresh, nil
	}
	p.Increment(m)
	p.UpdatedAt = now
	return *p, nil
}

// ListPerformance returns the period's rows joined with their owners,
// ordered by user id.
func (s *MemoryStore) ListPerformance(_ context.Context, q model.PerformanceQuery) ([]model.PerformanceRow, error) {
	defer observe("list_performance", time.Now())

	roles := make(map[model.Role]bool, len(q.Roles))
	for _, r := range q.Roles {
		roles[r] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PerformanceRow
	for key, p := range s.performances {
		if key.month != q.Month || key.year != q.Year {
			continue
		}
		u, ok := s.users[key.userID]
		if !ok || u.DealershipID != q.DealershipID {
			continue
		}
		if len(roles) > 0 && !roles[u.Role] {
			continue
		}
		if q.OrganizationID != "" && u.OrganizationID != q.OrganizationID {
			continue
		}
		out = append(out, model.PerformanceRow{Performance: *p, UserName: u.Name, UserRole: u.Role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Counts reports collection sizes.
func (s *MemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Counts{
		Users:        int64(len(s.users)),
		RawIngests:   s.ledgerKeys.Size(),
		Performances: int64(len(s.performances)),
	}
	for _, r := range s.raw {
		if r.ErrorMessage != "" {
			c.Unmatched++
		}
	}
	return c, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

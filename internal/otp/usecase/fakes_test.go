package usecase

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/contact"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/passcode"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/stretchr/testify/require"
)

type memDB struct {
	mu     sync.Mutex
	events map[int64]*entity.Event
}

func newMemDB() *memDB {
	return &memDB{events: map[int64]*entity.Event{}}
}

func (m *memDB) CreateEvent(_ context.Context, ev entity.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[ev.ID]; ok {
		return goerror.ErrConflict
	}
	m.events[ev.ID] = &ev
	return nil
}

func (m *memDB) GetEvent(_ context.Context, id int64) (*entity.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (m *memDB) UpdateAttempts(_ context.Context, id int64, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[id]; ok && ev.Status == entity.StatusPending && n > ev.AttemptCount {
		ev.AttemptCount = n
	}
	return nil
}

func (m *memDB) MarkVerified(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok || ev.Status != entity.StatusPending {
		return goerror.ErrNotFound
	}
	ev.Status = entity.StatusVerified
	ev.ConsumedAt = &at
	return nil
}

func (m *memDB) MarkStatus(_ context.Context, id int64, status entity.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok || ev.Status != entity.StatusPending {
		return false, nil
	}
	ev.Status = status
	return true, nil
}

func (m *memDB) ExpireStale(_ context.Context, now time.Time, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, ev := range m.events {
		if n >= int64(limit) {
			break
		}
		if ev.Status == entity.StatusPending && ev.IsExpired(now) {
			ev.Status = entity.StatusExpired
			n++
		}
	}
	return n, nil
}

func (m *memDB) ListEventsCreatedBetween(_ context.Context, from, to time.Time, afterID int64, limit int) ([]entity.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Event
	for _, ev := range m.events {
		if ev.ID > afterID && !ev.CreatedAt.Before(from) && ev.CreatedAt.Before(to) {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memDB) status(id int64) entity.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[id].Status
}

type memCache struct {
	mu      sync.Mutex
	clock   clock.Clocker
	entries map[string]entity.CacheEntry
	expires map[string]time.Time
}

func newMemCache(c clock.Clocker) *memCache {
	return &memCache{clock: c, entries: map[string]entity.CacheEntry{}, expires: map[string]time.Time{}}
}

func cacheKey(ch entity.Channel, identifier string) string {
	return "otp:" + ch.String() + ":" + identifier
}

func (m *memCache) live(key string) (entity.CacheEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return e, false
	}
	if !m.clock.Now().Before(m.expires[key]) {
		delete(m.entries, key)
		return e, false
	}
	return e, true
}

func (m *memCache) Get(_ context.Context, ch entity.Channel, identifier string) (*entity.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(cacheKey(ch, identifier))
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &e, nil
}

func (m *memCache) Set(_ context.Context, ch entity.Channel, identifier string, entry entity.CacheEntry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cacheKey(ch, identifier)
	m.entries[key] = entry
	m.expires[key] = m.clock.Now().Add(ttl)
	return nil
}

func (m *memCache) Delete(_ context.Context, ch entity.Channel, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, cacheKey(ch, identifier))
	return nil
}

func (m *memCache) ConsumeAttempt(_ context.Context, ch entity.Channel, identifier string, eventID int64) (*entity.CacheEntry, entity.ConsumeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cacheKey(ch, identifier)
	e, ok := m.live(key)
	if !ok || e.EventID != eventID {
		return nil, entity.ConsumeMissing, nil
	}
	if e.Exhausted() {
		return &e, entity.ConsumeExhausted, nil
	}
	e.Attempts++
	m.entries[key] = e
	return &e, entity.ConsumeOK, nil
}

type memThrottle struct {
	mu       sync.Mutex
	clock    clock.Clocker
	cooldown map[string]time.Time
	quota    map[string]int64
	resetAt  map[string]time.Time
}

func newMemThrottle(c clock.Clocker) *memThrottle {
	return &memThrottle{clock: c, cooldown: map[string]time.Time{}, quota: map[string]int64{}, resetAt: map[string]time.Time{}}
}

func (m *memThrottle) ClaimCooldown(_ context.Context, ch entity.Channel, identifier string, ttl time.Duration) (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cacheKey(ch, identifier)
	now := m.clock.Now()
	if until, ok := m.cooldown[key]; ok && now.Before(until) {
		return until.Sub(now), false, nil
	}
	m.cooldown[key] = now.Add(ttl)
	return 0, true, nil
}

func (m *memThrottle) ReleaseCooldown(_ context.Context, ch entity.Channel, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cooldown, cacheKey(ch, identifier))
	return nil
}

func (m *memThrottle) QuotaUsed(_ context.Context, ch entity.Channel, identifier string) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cacheKey(ch, identifier)
	now := m.clock.Now()
	if reset, ok := m.resetAt[key]; !ok || !now.Before(reset) {
		return 0, 0, nil
	}
	return m.quota[key], m.resetAt[key].Sub(now), nil
}

func (m *memThrottle) IncrementQuota(_ context.Context, ch entity.Channel, identifier string, window time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cacheKey(ch, identifier)
	now := m.clock.Now()
	if reset, ok := m.resetAt[key]; !ok || !now.Before(reset) {
		m.quota[key] = 0
		m.resetAt[key] = now.Add(window)
	}
	m.quota[key]++
	return nil
}

type memQueue struct {
	mu   sync.Mutex
	sent []DeliveryRequest
	err  error
}

func (m *memQueue) PublishDelivery(_ context.Context, req DeliveryRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, req)
	return nil
}

func (m *memQueue) last(t *testing.T) DeliveryRequest {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no delivery published")
	return m.sent[len(m.sent)-1]
}

type memArchive struct {
	days    map[string][]entity.Event
	writes  int
	writeTo time.Time
}

func newMemArchive() *memArchive {
	return &memArchive{days: map[string][]entity.Event{}}
}

func (m *memArchive) Exists(_ context.Context, day time.Time) (bool, error) {
	_, ok := m.days[day.Format(time.DateOnly)]
	return ok, nil
}

func (m *memArchive) Write(_ context.Context, day time.Time, events []entity.Event) (string, error) {
	m.writes++
	m.writeTo = day
	m.days[day.Format(time.DateOnly)] = events
	return "otp-ledger/" + day.Format("2006/01/02") + ".jsonl", nil
}

// memIdempotency mirrors idempotency.StateTracker without redis.
type memIdempotency struct {
	mu    sync.Mutex
	state map[string][]byte
}

func (m *memIdempotency) Exec(ctx context.Context, key string, fn func(context.Context) ([]byte, error), _ ...idempotency.Option) ([]byte, bool, error) {
	m.mu.Lock()
	if resp, ok := m.state[key]; ok {
		m.mu.Unlock()
		if resp == nil {
			return nil, false, idempotency.ErrAlreadyInProgress
		}
		return resp, true, nil
	}
	m.state[key] = nil
	m.mu.Unlock()

	resp, err := fn(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		delete(m.state, key)
		return nil, false, err
	}
	m.state[key] = resp
	return resp, false, nil
}

type seqID struct {
	mu sync.Mutex
	n  int64
}

func (s *seqID) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

type fixture struct {
	uc       *Usecase
	clock    *clock.Frozen
	db       *memDB
	cache    *memCache
	throttle *memThrottle
	queue    *memQueue
	archive  *memArchive
	idemp    *memIdempotency
}

var epoch = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	return newFixtureWithLength(t, cfg, 6)
}

func newFixtureWithLength(t *testing.T, cfg Config, codeLength int) *fixture {
	t.Helper()

	v, err := validator.NewV10Validator()
	require.NoError(t, err)
	gen, err := passcode.NewGenerator(codeLength)
	require.NoError(t, err)
	h, err := hash.New("bcrypt", "pepper", 4)
	require.NoError(t, err)

	clk := clock.NewFrozen(epoch)
	f := &fixture{
		clock:    clk,
		db:       newMemDB(),
		cache:    newMemCache(clk),
		throttle: newMemThrottle(clk),
		queue:    &memQueue{},
		archive:  newMemArchive(),
		idemp:    &memIdempotency{state: map[string][]byte{}},
	}
	f.uc = New(Dependency{
		RepoDB:       f.db,
		RepoCache:    f.cache,
		RepoThrottle: f.throttle,
		RepoQueue:    f.queue,
		RepoArchive:  f.archive,
		Normalizer:   contact.NewNormalizer("US"),
		Code:         gen,
		Hash:         h,
		Idempotency:  f.idemp,
		Validator:    v,
		UID:          &seqID{},
		Clock:        clk,
		Instrument:   instrument.NewNoop(),
		Config:       cfg,
	})

	return f
}

// defaultConfig matches production defaults except where a test overrides it.
func defaultConfig() Config {
	return Config{
		Expiry:      10 * time.Minute,
		MaxAttempts: 5,
		Cooldown:    30 * time.Second,
		RatePerHour: 5,
		RateWindow:  time.Hour,
	}
}

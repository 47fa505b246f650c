package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	"RiskWatch/pkg/cache"
	applogger "RiskWatch/pkg/logger"
	pkgsqlite "RiskWatch/pkg/sqlite"
)

// flakyKV fails loads and/or saves on demand. failLoads fails only the next n loads.
type flakyKV struct {
	mu        sync.Mutex
	data      map[string][]byte
	failLoad  bool
	failLoads int
	failSave  bool
	saves     int
}

func newFlakyKV() *flakyKV { return &flakyKV{data: map[string][]byte{}} }

func (k *flakyKV) Load(_ context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.failLoad {
		return nil, errors.New("disk unreadable")
	}
	if k.failLoads > 0 {
		k.failLoads--
		return nil, errors.New("disk unreadable")
	}
	b, ok := k.data[key]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	return b, nil
}

func (k *flakyKV) Save(_ context.Context, key string, v []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.saves++
	if k.failSave {
		return errors.New("disk full")
	}
	k.data[key] = append([]byte(nil), v...)
	return nil
}

func priceRule(name string) models.WatchRule {
	return models.WatchRule{
		Name:    name,
		Enabled: true,
		Scope:   models.AllAssets(),
		Conditions: []models.Condition{
			{Type: models.CondPriceChange, Operator: models.OpGT, Threshold: models.NumberThreshold(5)},
		},
	}
}

func TestRuleStoreCRUD(t *testing.T) {
	ctx := context.Background()
	kv := newFlakyKV()
	s := NewRuleStore(kv, applogger.NewNop())

	assert.Empty(t, s.Load(ctx))

	r := s.Add(ctx, priceRule("pump"))
	require.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())
	assert.Nil(t, r.LastTriggeredAt)

	off := false
	updated, ok := s.Update(ctx, r.ID, models.RulePatch{Enabled: &off})
	require.True(t, ok)
	assert.False(t, updated.Enabled)
	assert.Equal(t, "pump", updated.Name)

	_, ok = s.Update(ctx, "nope", models.RulePatch{Enabled: &off})
	assert.False(t, ok)

	// a fresh store reads back what was persisted
	reloaded := NewRuleStore(kv, applogger.NewNop()).Load(ctx)
	require.Len(t, reloaded, 1)
	assert.Equal(t, r.ID, reloaded[0].ID)
	assert.False(t, reloaded[0].Enabled)
	assert.True(t, reloaded[0].Scope.All)
	assert.Equal(t, 5.0, reloaded[0].Conditions[0].Threshold.Number)

	assert.False(t, s.Delete(ctx, "nope"))
	assert.True(t, s.Delete(ctx, r.ID))
	assert.Empty(t, s.Load(ctx))
}

func TestRuleStoreMarkTriggered(t *testing.T) {
	ctx := context.Background()
	s := NewRuleStore(newFlakyKV(), applogger.NewNop())
	r := s.Add(ctx, priceRule("pump"))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{r.ID}, s.MarkTriggered(ctx, at, r.ID, "unknown"))

	got, ok := s.Get(ctx, r.ID)
	require.True(t, ok)
	require.NotNil(t, got.LastTriggeredAt)
	assert.True(t, at.Equal(*got.LastTriggeredAt))
}

func TestRuleStoreUnreadableStorage(t *testing.T) {
	ctx := context.Background()
	kv := newFlakyKV()
	kv.failLoad = true
	kv.failSave = true
	s := NewRuleStore(kv, applogger.NewNop())

	assert.Empty(t, s.Load(ctx))

	r := s.Add(ctx, priceRule("pump"))
	// write failed, memory stays authoritative
	rules := s.Load(ctx)
	require.Len(t, rules, 1)
	assert.Equal(t, r.ID, rules[0].ID)
}

func TestRuleStoreLoadOutageKeepsStoredRules(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name           string
		failLoads      int
		storedAfterAdd int
	}{
		{name: "load recovers on write", failLoads: 1, storedAfterAdd: 3},
		{name: "outage outlasts write", failLoads: 2, storedAfterAdd: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := newFlakyKV()
			seed := NewRuleStore(kv, applogger.NewNop())
			seed.Add(ctx, priceRule("a"))
			seed.Add(ctx, priceRule("b"))

			kv.failLoads = tt.failLoads
			s := NewRuleStore(kv, applogger.NewNop())
			added := s.Add(ctx, priceRule("c"))

			assert.Len(t, NewRuleStore(kv, applogger.NewNop()).Load(ctx), tt.storedAfterAdd)

			rules := s.Load(ctx)
			require.Len(t, rules, 3)
			assert.Equal(t, added.ID, rules[2].ID)

			restarted := NewRuleStore(kv, applogger.NewNop()).Load(ctx)
			require.Len(t, restarted, 3)
			assert.Equal(t, "a", restarted[0].Name)
			assert.Equal(t, "c", restarted[2].Name)
		})
	}
}

func TestRuleStoreCorruptDocument(t *testing.T) {
	kv := newFlakyKV()
	kv.data[RulesKey] = []byte("{not json")
	s := NewRuleStore(kv, applogger.NewNop())
	assert.Empty(t, s.Load(context.Background()))
}

func TestRuleStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewRuleStore(newFlakyKV(), applogger.NewNop())
	r := s.Add(ctx, priceRule("pump"))

	rules := s.Load(ctx)
	rules[0].Conditions[0].Threshold = models.NumberThreshold(99)

	got, _ := s.Get(ctx, r.ID)
	assert.Equal(t, 5.0, got.Conditions[0].Threshold.Number)
}

func note(id string) models.Notification {
	return models.Notification{ID: id, RuleID: "r", Symbol: "BTC", TriggeredAt: time.Now()}
}

func TestNotificationHistoryBounded(t *testing.T) {
	ctx := context.Background()
	h := NewNotificationHistory(newFlakyKV(), 3, applogger.NewNop())

	h.Append(ctx, note("1"), note("2"))
	h.Append(ctx, note("3"))
	h.Append(ctx, note("4"))

	list := h.List(ctx, false, 0)
	require.Len(t, list, 3)
	assert.Equal(t, "4", list[0].ID)
	assert.Equal(t, "3", list[1].ID)
	assert.Equal(t, "2", list[2].ID)
}

func TestNotificationHistoryReadState(t *testing.T) {
	ctx := context.Background()
	kv := newFlakyKV()
	h := NewNotificationHistory(kv, 0, applogger.NewNop())
	h.Append(ctx, note("a"), note("b"), note("c"))

	assert.Equal(t, 3, h.UnreadCount(ctx))
	assert.True(t, h.MarkRead(ctx, "b"))
	assert.False(t, h.MarkRead(ctx, "zzz"))
	assert.Equal(t, 2, h.UnreadCount(ctx))

	unread := h.List(ctx, true, 1)
	require.Len(t, unread, 1)
	assert.Equal(t, "c", unread[0].ID)

	assert.Equal(t, 2, h.MarkAllRead(ctx))
	assert.Equal(t, 0, h.UnreadCount(ctx))

	var persisted []models.Notification
	require.NoError(t, json.Unmarshal(kv.data[NotificationsKey], &persisted))
	require.Len(t, persisted, 3)
	assert.True(t, persisted[0].Read)

	h.Clear(ctx)
	assert.Empty(t, h.List(ctx, false, 0))
	assert.Equal(t, "[]", string(kv.data[NotificationsKey]))
}

func TestNotificationHistoryLoadOutageKeepsStoredEntries(t *testing.T) {
	ctx := context.Background()
	kv := newFlakyKV()
	NewNotificationHistory(kv, 0, applogger.NewNop()).Append(ctx, note("1"), note("2"))

	kv.failLoads = 2
	h := NewNotificationHistory(kv, 0, applogger.NewNop())
	h.Append(ctx, note("3"))

	var persisted []models.Notification
	require.NoError(t, json.Unmarshal(kv.data[NotificationsKey], &persisted))
	assert.Len(t, persisted, 2)

	list := h.List(ctx, false, 0)
	require.Len(t, list, 3)
	assert.Equal(t, "3", list[0].ID)
	assert.Equal(t, "2", list[1].ID)

	restarted := NewNotificationHistory(kv, 0, applogger.NewNop()).List(ctx, false, 0)
	require.Len(t, restarted, 3)
	assert.Equal(t, "3", restarted[0].ID)
}

func TestCacheKV(t *testing.T) {
	ctx := context.Background()
	kv := NewCacheKV(cache.NewMemoryCache())

	_, err := kv.Load(ctx, "k")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	require.NoError(t, kv.Save(ctx, "k", []byte("v")))
	b, err := kv.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(b))
}

func TestSQLiteKV(t *testing.T) {
	ctx := context.Background()
	c, err := pkgsqlite.NewClient(pkgsqlite.MemoryPath)
	require.NoError(t, err)
	defer c.Close()

	kv, err := NewSQLiteKV(ctx, c)
	require.NoError(t, err)

	_, err = kv.Load(ctx, RulesKey)
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	require.NoError(t, kv.Save(ctx, RulesKey, []byte("[1]")))
	require.NoError(t, kv.Save(ctx, RulesKey, []byte("[2]")))
	b, err := kv.Load(ctx, RulesKey)
	require.NoError(t, err)
	assert.Equal(t, "[2]", string(b))

	// rule store round trip over sqlite
	s := NewRuleStore(kv, applogger.NewNop())
	r := s.Add(ctx, priceRule("dump"))
	again := NewRuleStore(kv, applogger.NewNop()).Load(ctx)
	require.Len(t, again, 1)
	assert.Equal(t, r.ID, again[0].ID)
}

func TestSQLiteArchive(t *testing.T) {
	ctx := context.Background()
	c, err := pkgsqlite.NewClient(pkgsqlite.MemoryPath)
	require.NoError(t, err)
	defer c.Close()

	a := NewSQLiteArchive(c, applogger.NewNop())
	require.NoError(t, a.Init(ctx))
	require.NoError(t, a.Init(ctx))

	now := time.Now()
	batch := []models.AssetState{
		{Symbol: "BTC", Assessment: models.Assessment{
			Symbol: "BTC", Score: models.ScoreOf(58), Level: models.LevelMedium, ComputedAt: now,
			Breakdown: &models.ScoreBreakdown{News: 64, Social: 20, OnChain: 88},
		}},
		{Symbol: "ETH", Assessment: models.Unavailable("ETH", "no data", now)},
	}
	require.NoError(t, a.StoreBatch(ctx, batch))
	require.NoError(t, a.StoreBatch(ctx, nil))

	var n, nulls int
	require.NoError(t, c.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM assessments`).Scan(&n))
	require.NoError(t, c.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM assessments WHERE score IS NULL`).Scan(&nulls))
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, nulls)

	var score int
	require.NoError(t, c.DB().QueryRowContext(ctx, `SELECT score FROM assessments WHERE symbol = 'BTC'`).Scan(&score))
	assert.Equal(t, 58, score)
}

package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	"RiskWatch/internal/repository"
	"RiskWatch/internal/services/risk"
	"RiskWatch/internal/services/summary"
	"RiskWatch/internal/services/watch"
	"RiskWatch/pkg/cache"
	applogger "RiskWatch/pkg/logger"
)

type stubSource struct {
	snaps map[string]models.Snapshot
	errs  map[string]error
	slow  map[string]bool
	boom  map[string]bool
}

func (s *stubSource) Fetch(ctx context.Context, a domrepo.Asset) (models.Snapshot, error) {
	if s.boom[a.Symbol] {
		panic("source exploded")
	}
	if s.slow[a.Symbol] {
		<-ctx.Done()
		return models.Snapshot{}, ctx.Err()
	}
	if err := s.errs[a.Symbol]; err != nil {
		return models.Snapshot{}, err
	}
	snap, ok := s.snaps[a.Symbol]
	if !ok {
		return models.Snapshot{}, domrepo.ErrNoData
	}
	return snap, nil
}

type recordingDispatcher struct {
	mu  sync.Mutex
	got []models.Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ns []models.Notification) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, ns...)
	return len(ns)
}

type failingArchive struct{ calls int }

func (a *failingArchive) Init(context.Context) error { return nil }
func (a *failingArchive) StoreBatch(context.Context, []models.AssetState) error {
	a.calls++
	return errors.New("clickhouse down")
}
func (a *failingArchive) Close() error { return nil }

// panickySummarizer blows up for the listed symbols.
type panickySummarizer struct {
	next Describer
	boom map[string]bool
}

func (p panickySummarizer) Describe(ctx context.Context, snap models.Snapshot, a models.Assessment) (string, string) {
	if p.boom[a.Symbol] {
		panic("summarizer exploded")
	}
	return p.next.Describe(ctx, snap, a)
}

type fixture struct {
	cycle      *RefreshCycle
	board      *AnalysisBoard
	rules      *repository.RuleStore
	history    *repository.NotificationHistory
	evaluator  *watch.Evaluator
	dispatcher *recordingDispatcher
	archive    *failingArchive
	now        time.Time
}

func newFixture(t *testing.T, src domrepo.SignalSource, assets ...domrepo.Asset) *fixture {
	t.Helper()
	l := applogger.NewNop()
	f := &fixture{
		board:      NewAnalysisBoard(),
		rules:      repository.NewRuleStore(repository.NewCacheKV(cache.NewMemoryCache()), l),
		history:    repository.NewNotificationHistory(repository.NewCacheKV(cache.NewMemoryCache()), 100, l),
		evaluator:  watch.NewEvaluator(watch.NewCooldown(time.Minute), nil),
		dispatcher: &recordingDispatcher{},
		archive:    &failingArchive{},
		now:        time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.cycle = NewRefreshCycle(CycleDeps{
		Assets:     assets,
		Source:     src,
		Scorer:     risk.NewScorer(),
		Summarizer: summary.NewChain(l),
		Board:      f.board,
		Archive:    f.archive,
		Rules:      f.rules,
		History:    f.history,
		Evaluator:  f.evaluator,
		Dispatcher: f.dispatcher,
		Logger:     l,
	}, time.Second, 50*time.Millisecond)
	f.cycle.now = func() time.Time { return f.now }
	return f
}

func priceAbove(name string, pct float64) models.WatchRule {
	return models.WatchRule{
		Name:    name,
		Enabled: true,
		Scope:   models.AllAssets(),
		Conditions: []models.Condition{
			{Type: models.CondPriceChange, Operator: models.OpGT, Threshold: models.NumberThreshold(pct)},
		},
	}
}

func btcSnapshot() models.Snapshot {
	return models.Snapshot{
		Symbol:         "BTC",
		News:           &models.NewsSignals{NegativeCount: 4, TotalCount: 10, RiskTags: []string{"hack", "regulation"}},
		Social:         &models.SocialSignals{NegativeCount: 3, TotalCount: 10},
		OnChain:        &models.OnChainSignals{NetflowPercent: 12, ActiveAddressChange: -15},
		PriceChange24h: models.Float(7.2),
	}
}

func TestRefreshCycle_IsolatesFailures(t *testing.T) {
	src := &stubSource{
		snaps: map[string]models.Snapshot{"BTC": btcSnapshot()},
		errs:  map[string]error{"ETH": errors.New("upstream 502")},
		slow:  map[string]bool{"SOL": true},
		boom:  map[string]bool{"DOGE": true},
	}
	f := newFixture(t, src,
		domrepo.Asset{Symbol: "BTC", Name: "Bitcoin"},
		domrepo.Asset{Symbol: "ETH", Name: "Ethereum"},
		domrepo.Asset{Symbol: "SOL", Name: "Solana"},
		domrepo.Asset{Symbol: "DOGE", Name: "Dogecoin"},
		domrepo.Asset{Symbol: "ADA", Name: "Cardano"},
	)

	res := f.cycle.RunOnce(context.Background())
	require.Len(t, res.States, 5)

	btc := res.States[0]
	assert.Equal(t, "BTC", btc.Symbol)
	v, ok := btc.Assessment.Score.Value()
	require.True(t, ok)
	assert.Equal(t, 54, v)
	assert.Equal(t, models.LevelMedium, btc.Assessment.Level)
	assert.NotEmpty(t, btc.Assessment.Summary)
	assert.Equal(t, summary.SourceRuleBased, btc.Assessment.SummarySource)

	for _, st := range res.States[1:] {
		assert.Equal(t, models.LevelUnavailable, st.Assessment.Level, st.Symbol)
		assert.False(t, st.Assessment.Score.Available(), st.Symbol)
		assert.NotEmpty(t, st.Assessment.Summary, st.Symbol)
	}
	assert.Contains(t, res.States[3].Assessment.Reason, "panic")

	// archive failure does not stop the cycle
	assert.Equal(t, 1, f.archive.calls)

	got, ok := f.board.Get("btc")
	require.True(t, ok)
	assert.Equal(t, btc.Assessment, got.Assessment)
	assert.Equal(t, f.now, f.board.UpdatedAt())
}

func TestRefreshCycle_NotifiesWithCooldown(t *testing.T) {
	src := &stubSource{snaps: map[string]models.Snapshot{"BTC": btcSnapshot()}}
	f := newFixture(t, src, domrepo.Asset{Symbol: "BTC", Name: "Bitcoin"})
	ctx := context.Background()

	rule := f.rules.Add(ctx, models.WatchRule{
		Name:    "Pump",
		Enabled: true,
		Scope:   models.AllAssets(),
		Conditions: []models.Condition{
			{Type: models.CondPriceChange, Operator: models.OpGT, Threshold: models.NumberThreshold(5)},
		},
	})

	res := f.cycle.RunOnce(ctx)
	require.Len(t, res.Notifications, 1)
	n := res.Notifications[0]
	assert.Equal(t, rule.ID, n.RuleID)
	assert.Equal(t, "Bitcoin", n.AssetName)
	assert.True(t, strings.HasPrefix(n.Message, "Pump: Bitcoin matched"))
	assert.Contains(t, n.Message, "7.2")

	stored, ok := f.rules.Get(ctx, rule.ID)
	require.True(t, ok)
	require.NotNil(t, stored.LastTriggeredAt)
	assert.Equal(t, f.now, *stored.LastTriggeredAt)
	assert.Equal(t, 1, f.history.UnreadCount(ctx))
	assert.Len(t, f.dispatcher.got, 1)

	// inside the cooldown window
	f.now = f.now.Add(30 * time.Second)
	assert.Empty(t, f.cycle.RunOnce(ctx).Notifications)

	// after the window
	f.now = f.now.Add(31 * time.Second)
	assert.Len(t, f.cycle.RunOnce(ctx).Notifications, 1)
	assert.Equal(t, 2, f.history.UnreadCount(ctx))
}

func TestRefreshCycle_IsolatesAnalysisPanics(t *testing.T) {
	xrp := btcSnapshot()
	xrp.Symbol = "XRP"
	src := &stubSource{snaps: map[string]models.Snapshot{"BTC": btcSnapshot(), "XRP": xrp}}
	f := newFixture(t, src,
		domrepo.Asset{Symbol: "BTC", Name: "Bitcoin"},
		domrepo.Asset{Symbol: "XRP", Name: "Ripple"},
	)
	f.cycle.summarizer = panickySummarizer{next: f.cycle.summarizer, boom: map[string]bool{"XRP": true}}

	res := f.cycle.RunOnce(context.Background())
	require.Len(t, res.States, 2)

	assert.True(t, res.States[0].Assessment.IsAvailable())

	bad := res.States[1].Assessment
	assert.Equal(t, "XRP", bad.Symbol)
	assert.Equal(t, models.LevelUnavailable, bad.Level)
	assert.Contains(t, bad.Reason, "analysis panic")
	assert.NotEmpty(t, bad.Summary)
	assert.Equal(t, summary.SourceRuleBased, bad.SummarySource)

	adhoc := f.cycle.Assess(context.Background(), xrp)
	assert.Equal(t, models.LevelUnavailable, adhoc.Assessment.Level)
	assert.Contains(t, adhoc.Assessment.Reason, "analysis panic")
}

func TestRefreshCycle_DropsNotificationsOfRuleDeletedMidCycle(t *testing.T) {
	f := newFixture(t, &stubSource{}, domrepo.Asset{Symbol: "BTC", Name: "Bitcoin"})
	uc := NewRulesUseCase(f.rules, f.evaluator)
	ctx := context.Background()

	kept := f.rules.Add(ctx, priceAbove("Keep", 5))
	deleted := f.rules.Add(ctx, priceAbove("Gone", 5))
	states := []models.AssetState{f.cycle.Assess(ctx, btcSnapshot())}

	// the cycle has loaded and evaluated the rules when the delete lands
	ns := f.evaluator.EvaluateAll(f.rules.Load(ctx), states, f.now)
	require.Len(t, ns, 2)
	require.NoError(t, uc.Delete(ctx, deleted.ID))

	live := f.rules.MarkTriggered(ctx, f.now, watch.TriggeredRuleIDs(ns)...)
	assert.Equal(t, []string{kept.ID}, live)

	ns = f.cycle.dropDeleted(ns, live)
	require.Len(t, ns, 1)
	assert.Equal(t, kept.ID, ns[0].RuleID)

	// no cooldown left behind for the deleted rule
	again := f.evaluator.EvaluateAll([]models.WatchRule{deleted}, states, f.now)
	assert.Len(t, again, 1)
}

func TestRefreshCycle_RunStopsWithContext(t *testing.T) {
	f := newFixture(t, &stubSource{}, domrepo.Asset{Symbol: "BTC"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.cycle.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return !f.board.UpdatedAt().IsZero() }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestAnalysisBoard_ReplaceIsWholesale(t *testing.T) {
	b := NewAnalysisBoard()
	b.Replace([]models.AssetState{{Symbol: "BTC"}, {Symbol: "ETH"}}, time.Now())
	b.Replace([]models.AssetState{{Symbol: "SOL"}}, time.Now())

	_, ok := b.Get("BTC")
	assert.False(t, ok)
	all := b.All()
	require.Len(t, all, 1)
	assert.Equal(t, "SOL", all[0].Symbol)

	all[0].Symbol = "mutated"
	st, ok := b.Get("sol")
	require.True(t, ok)
	assert.Equal(t, "SOL", st.Symbol)
}

func TestAssessmentsUseCase(t *testing.T) {
	src := &stubSource{snaps: map[string]models.Snapshot{"BTC": btcSnapshot()}}
	f := newFixture(t, src, domrepo.Asset{Symbol: "BTC", Name: "Bitcoin"})
	uc := NewAssessmentsUseCase(f.board, f.cycle)

	assert.Nil(t, uc.List().UpdatedAt)
	_, err := uc.Get("BTC")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	f.cycle.RunOnce(context.Background())
	list := uc.List()
	require.NotNil(t, list.UpdatedAt)
	assert.Len(t, list.Assets, 1)

	adhoc := uc.Score(context.Background(), models.Snapshot{
		Symbol: "XRP",
		News:   &models.NewsSignals{NegativeCount: 1, TotalCount: 10, RiskTags: []string{"regulation"}},
		Social: &models.SocialSignals{NegativeCount: 2, TotalCount: 20},
	})
	v, ok := adhoc.Assessment.Score.Value()
	require.True(t, ok)
	assert.Equal(t, 27, v)
	assert.Equal(t, models.LevelLow, adhoc.Assessment.Level)
	_, err = uc.Get("XRP")
	assert.ErrorIs(t, err, domrepo.ErrNotFound, "ad-hoc scoring leaves the board alone")
}

func TestRulesUseCase(t *testing.T) {
	f := newFixture(t, &stubSource{})
	uc := NewRulesUseCase(f.rules, f.evaluator)
	ctx := context.Background()

	_, err := uc.Create(ctx, models.CreateRuleRequest{Name: "empty scope"})
	var inv *InvalidError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "scope", inv.Field)

	_, err = uc.Create(ctx, models.CreateRuleRequest{
		Name:  "bad threshold",
		Scope: models.AllAssets(),
		Conditions: []models.ConditionInput{
			{Type: models.CondRiskScore, Operator: models.OpGT, Threshold: models.LevelThreshold(models.LevelHigh)},
		},
	})
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "conditions[0].threshold", inv.Field)

	r, err := uc.Create(ctx, models.CreateRuleRequest{
		Name:  " High risk ",
		Scope: models.SymbolScope("btc", "BTC", " eth "),
		Conditions: []models.ConditionInput{
			{Type: models.CondRiskLevel, Operator: models.OpGE, Threshold: models.LevelThreshold(models.LevelHigh)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "High risk", r.Name)
	assert.True(t, r.Enabled)
	assert.Equal(t, []string{"BTC", "ETH"}, r.Scope.Symbols)
	assert.NotEmpty(t, r.ID)

	off := false
	updated, err := uc.Update(ctx, models.UpdateRuleRequest{ID: r.ID, Enabled: &off})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Equal(t, "High risk", updated.Name)

	_, err = uc.Update(ctx, models.UpdateRuleRequest{ID: "missing", Enabled: &off})
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	require.NoError(t, uc.Delete(ctx, r.ID))
	assert.ErrorIs(t, uc.Delete(ctx, r.ID), domrepo.ErrNotFound)
	assert.Empty(t, uc.List(ctx))
}

func TestNotificationsUseCase(t *testing.T) {
	f := newFixture(t, &stubSource{})
	uc := NewNotificationsUseCase(f.history)
	ctx := context.Background()

	list := uc.List(ctx, false, 10)
	assert.NotNil(t, list.Items)
	assert.Empty(t, list.Items)

	f.history.Append(ctx,
		models.Notification{ID: "a", RuleID: "r", Symbol: "BTC", TriggeredAt: f.now},
		models.Notification{ID: "b", RuleID: "r", Symbol: "ETH", TriggeredAt: f.now},
	)
	require.NoError(t, uc.MarkRead(ctx, "a"))
	assert.ErrorIs(t, uc.MarkRead(ctx, "zzz"), domrepo.ErrNotFound)

	list = uc.List(ctx, true, 10)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "b", list.Items[0].ID)
	assert.Equal(t, 1, list.Unread)

	assert.Equal(t, 1, uc.MarkAllRead(ctx))
	uc.Clear(ctx)
	assert.Empty(t, uc.List(ctx, false, 10).Items)
}

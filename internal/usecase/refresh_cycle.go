package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	domsvc "RiskWatch/internal/domain/service"
	"RiskWatch/internal/repository"
	"RiskWatch/internal/service/metrics"
	"RiskWatch/internal/services/risk"
	"RiskWatch/internal/services/summary"
	"RiskWatch/internal/services/watch"
	applogger "RiskWatch/pkg/logger"
)

// Describer produces the summary text and the name of the strategy that wrote it.
type Describer interface {
	Describe(ctx context.Context, snap models.Snapshot, a models.Assessment) (string, string)
}

// Dispatcher delivers notifications to the configured sinks.
type Dispatcher interface {
	Dispatch(ctx context.Context, ns []models.Notification) int
}

// RefreshCycle runs the periodic fetch, score, summarize, evaluate, notify loop.
type RefreshCycle struct {
	assets       []domrepo.Asset
	source       domrepo.SignalSource
	scorer       domsvc.RiskScorer
	summarizer   Describer
	board        *AnalysisBoard
	archive      domrepo.AssessmentArchive
	rules        *repository.RuleStore
	history      *repository.NotificationHistory
	evaluator    *watch.Evaluator
	dispatcher   Dispatcher
	metrics      domrepo.Metrics
	l            *applogger.Logger
	interval     time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
}

// CycleDeps groups the collaborators of a refresh cycle.
type CycleDeps struct {
	Assets     []domrepo.Asset
	Source     domrepo.SignalSource
	Scorer     domsvc.RiskScorer
	Summarizer Describer
	Board      *AnalysisBoard
	Archive    domrepo.AssessmentArchive
	Rules      *repository.RuleStore
	History    *repository.NotificationHistory
	Evaluator  *watch.Evaluator
	Dispatcher Dispatcher
	Metrics    domrepo.Metrics
	Logger     *applogger.Logger
}

// CycleResult is what one cycle produced.
type CycleResult struct {
	States        []models.AssetState
	Notifications []models.Notification
	Duration      time.Duration
}

func NewRefreshCycle(d CycleDeps, interval, fetchTimeout time.Duration) *RefreshCycle {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.Logger == nil {
		d.Logger = applogger.NewNop()
	}
	return &RefreshCycle{
		assets:       d.Assets,
		source:       d.Source,
		scorer:       d.Scorer,
		summarizer:   d.Summarizer,
		board:        d.Board,
		archive:      d.Archive,
		rules:        d.Rules,
		history:      d.History,
		evaluator:    d.Evaluator,
		dispatcher:   d.Dispatcher,
		metrics:      d.Metrics,
		l:            d.Logger,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}
}

// Run executes a cycle immediately and then on every tick until ctx is done.
// Ticks that fire while a cycle is still running are coalesced by the ticker.
func (c *RefreshCycle) Run(ctx context.Context) {
	c.l.Info("refresh loop started",
		applogger.Duration("interval_ms", c.interval),
		applogger.Int("assets", len(c.assets)))
	c.RunOnce(ctx)

	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.l.Info("refresh loop stopped")
			return
		case <-t.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce fetches and assesses every asset concurrently, waits for all of them, then publishes
// the batch and evaluates the watch rules against it.
func (c *RefreshCycle) RunOnce(ctx context.Context) CycleResult {
	start := c.now()

	states := make([]models.AssetState, len(c.assets))
	var wg sync.WaitGroup
	for i, a := range c.assets {
		wg.Add(1)
		go func(i int, a domrepo.Asset) {
			defer wg.Done()
			states[i] = c.process(ctx, a)
		}(i, a)
	}
	wg.Wait()

	now := c.now().UTC()
	c.board.Replace(states, now)
	for _, st := range states {
		c.metrics.RecordAssessment(st.Symbol, st.Assessment.Level, st.Assessment.Score)
	}
	c.store(ctx, states)

	var ns []models.Notification
	if c.rules != nil && c.evaluator != nil {
		ns = c.evaluator.EvaluateAll(c.rules.Load(ctx), states, now)
	}
	if len(ns) > 0 {
		ns = c.dropDeleted(ns, c.rules.MarkTriggered(ctx, now, watch.TriggeredRuleIDs(ns)...))
	}
	if len(ns) > 0 {
		if c.history != nil {
			c.history.Append(ctx, ns...)
		}
		if c.dispatcher != nil {
			c.dispatcher.Dispatch(ctx, ns)
		}
		c.l.Info("watch rules triggered", applogger.Int("notifications", len(ns)))
	}

	d := c.now().Sub(start)
	c.metrics.RecordCycle(d.Seconds(), len(states))
	c.l.Debug("refresh cycle done", applogger.Duration("duration_ms", d), applogger.Int("assets", len(states)))
	return CycleResult{States: states, Notifications: ns, Duration: d}
}

// dropDeleted keeps the notifications of rules that still exist. A rule deleted while the cycle
// evaluated it has its cooldown entries cleared again.
func (c *RefreshCycle) dropDeleted(ns []models.Notification, live []string) []models.Notification {
	keep := make(map[string]bool, len(live))
	for _, id := range live {
		keep[id] = true
	}
	gone := make(map[string]bool)
	out := ns[:0]
	for _, n := range ns {
		if keep[n.RuleID] {
			out = append(out, n)
			continue
		}
		if !gone[n.RuleID] {
			gone[n.RuleID] = true
			c.evaluator.Forget(n.RuleID)
			c.l.Debug("dropped notification of deleted rule", applogger.String("rule_id", n.RuleID))
		}
	}
	return out
}

// process runs the whole per-asset pipeline. A panic anywhere in it becomes an unavailable state.
func (c *RefreshCycle) process(ctx context.Context, a domrepo.Asset) (st models.AssetState) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.RecordError("panic")
			c.l.Error("asset analysis panic", applogger.String("symbol", a.Symbol), applogger.Any("panic", r))
			st = c.unavailable(a, fmt.Sprintf("analysis panic: %v", r))
		}
	}()
	snap, err := c.fetch(ctx, a)
	if err != nil {
		kind := "fetch"
		if errors.Is(err, domrepo.ErrNoData) {
			kind = "fetch_no_data"
		}
		c.metrics.RecordError(kind)
		c.l.Warn("signal fetch failed", applogger.String("symbol", a.Symbol), applogger.Error(err))
		return c.assess(ctx, a, nil, err)
	}
	return c.assess(ctx, a, &snap, nil)
}

// Assess scores an ad-hoc snapshot the same way a cycle does, without publishing it.
func (c *RefreshCycle) Assess(ctx context.Context, snap models.Snapshot) (st models.AssetState) {
	a := domrepo.Asset{Symbol: snap.Symbol, Name: snap.Name}
	defer func() {
		if r := recover(); r != nil {
			c.l.Error("ad-hoc analysis panic", applogger.String("symbol", a.Symbol), applogger.Any("panic", r))
			st = c.unavailable(a, fmt.Sprintf("analysis panic: %v", r))
		}
	}()
	return c.assess(ctx, a, &snap, nil)
}

// unavailable builds a state without calling the summarizer.
func (c *RefreshCycle) unavailable(a domrepo.Asset, reason string) models.AssetState {
	as := models.Unavailable(a.Symbol, reason, c.now().UTC())
	as.Summary = summary.Truncate(summary.Describe(models.Snapshot{Symbol: a.Symbol, Name: a.Name}, as))
	as.SummarySource = summary.SourceRuleBased
	return models.AssetState{Symbol: a.Symbol, Name: a.Name, Assessment: as}
}

func (c *RefreshCycle) assess(ctx context.Context, a domrepo.Asset, snap *models.Snapshot, fetchErr error) models.AssetState {
	var (
		as models.Assessment
		sn models.Snapshot
	)
	if snap == nil {
		sn = models.Snapshot{Symbol: a.Symbol, Name: a.Name}
		as = models.Unavailable(a.Symbol, fetchErr.Error(), c.now().UTC())
	} else {
		sn = *snap
		as = risk.Escalate(c.scorer.Score(sn), sn.AnomalyFlags)
	}
	as.Symbol = a.Symbol
	as.Summary, as.SummarySource = c.summarizer.Describe(ctx, sn, as)

	st := models.AssetState{Symbol: a.Symbol, Name: a.Name, Assessment: as}
	if snap != nil {
		st.Snapshot = snap
	}
	return st
}

// fetch bounds one source call by the fetch timeout and turns a panic into an error.
func (c *RefreshCycle) fetch(ctx context.Context, a domrepo.Asset) (models.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	type result struct {
		snap models.Snapshot
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("signal source panic: %v", r)}
			}
		}()
		snap, err := c.source.Fetch(ctx, a)
		ch <- result{snap: snap, err: err}
	}()

	select {
	case r := <-ch:
		return r.snap, r.err
	case <-ctx.Done():
		return models.Snapshot{}, fmt.Errorf("fetch %s: %w", a.Symbol, ctx.Err())
	}
}

func (c *RefreshCycle) store(ctx context.Context, states []models.AssetState) {
	if c.archive == nil {
		return
	}
	start := c.now()
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	if err := c.archive.StoreBatch(ctx, states); err != nil {
		c.metrics.RecordError("archive")
		c.l.Warn("assessment archive failed", applogger.Error(err))
		return
	}
	c.metrics.RecordLatency("archive", c.now().Sub(start).Seconds())
}

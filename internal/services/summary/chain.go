package summary

import (
	"context"
	"strings"
	"time"

	"RiskWatch/internal/domain/models"
	domsvc "RiskWatch/internal/domain/service"
	applogger "RiskWatch/pkg/logger"
)

// SourceRuleBased names the deterministic fallback in Assessment.SummarySource.
const SourceRuleBased = "rule_based"

// Strategy is one named summarizer in the chain.
type Strategy struct {
	Name       string
	Summarizer domsvc.Summarizer
	Timeout    time.Duration
}

// Chain tries strategies in order and falls back to the rule-based summary, so it always
// produces text.
type Chain struct {
	strategies []Strategy
	fallback   *RuleBased
	l          *applogger.Logger
}

func NewChain(l *applogger.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, fallback: NewRuleBased(), l: l}
}

// Summarize satisfies domsvc.Summarizer; it never returns an error.
func (c *Chain) Summarize(ctx context.Context, snap models.Snapshot, a models.Assessment) (string, error) {
	text, _ := c.Describe(ctx, snap, a)
	return text, nil
}

// Describe returns the summary and the name of the strategy that produced it.
func (c *Chain) Describe(ctx context.Context, snap models.Snapshot, a models.Assessment) (string, string) {
	// the AI path adds nothing when there is no data to explain
	if a.IsAvailable() {
		for _, st := range c.strategies {
			if text, ok := c.try(ctx, st, snap, a); ok {
				return text, st.Name
			}
		}
	}
	text, _ := c.fallback.Summarize(ctx, snap, a)
	return text, SourceRuleBased
}

func (c *Chain) try(ctx context.Context, st Strategy, snap models.Snapshot, a models.Assessment) (string, bool) {
	if st.Summarizer == nil {
		return "", false
	}
	if st.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.Timeout)
		defer cancel()
	}
	text, err := st.Summarizer.Summarize(ctx, snap, a)
	if err != nil {
		c.l.Debug("summarizer strategy failed",
			applogger.String("strategy", st.Name),
			applogger.String("symbol", snap.Symbol),
			applogger.Error(err),
		)
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	return Truncate(text), true
}

var _ domsvc.Summarizer = (*Chain)(nil)

package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
)

// Evaluator matches watch rules against the latest asset states.
type Evaluator struct {
	cooldown *Cooldown
	metrics  domrepo.Metrics
	newID    func() string
}

func NewEvaluator(cooldown *Cooldown, metrics domrepo.Metrics) *Evaluator {
	if cooldown == nil {
		cooldown = NewCooldown(DefaultCooldown)
	}
	return &Evaluator{cooldown: cooldown, metrics: metrics, newID: uuid.NewString}
}

// Matches reports whether every condition of r holds for st. Disabled rules, out-of-scope assets
// and rules without conditions never match.
func Matches(r models.WatchRule, st models.AssetState) ([]Observation, bool) {
	if !r.Enabled || len(r.Conditions) == 0 {
		return nil, false
	}
	if !r.Scope.Includes(st.Symbol) {
		return nil, false
	}
	obs := make([]Observation, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		o, ok := Match(c, st)
		if !ok {
			return nil, false
		}
		obs = append(obs, o)
	}
	return obs, true
}

// EvaluateAll returns one notification per matching (rule, asset) pair that is out of cooldown.
// The caller persists lastTriggeredAt for the rules that fired.
func (e *Evaluator) EvaluateAll(rules []models.WatchRule, states []models.AssetState, now time.Time) []models.Notification {
	var out []models.Notification
	for _, r := range rules {
		for _, st := range states {
			obs, ok := Matches(r, st)
			if !ok {
				continue
			}
			if !e.cooldown.Allow(r.ID, st.Symbol, now) {
				if e.metrics != nil {
					e.metrics.RecordSuppressed(r.ID)
				}
				continue
			}
			out = append(out, models.Notification{
				ID:          e.newID(),
				RuleID:      r.ID,
				RuleName:    r.Name,
				Symbol:      st.Symbol,
				AssetName:   assetName(st),
				Message:     Render(r, st, obs),
				TriggeredAt: now,
			})
		}
	}
	return out
}

// Forget clears cooldown state of a deleted rule.
func (e *Evaluator) Forget(ruleID string) { e.cooldown.Forget(ruleID) }

// Render builds the message, interpolating each observed value.
func Render(r models.WatchRule, st models.AssetState, obs []Observation) string {
	parts := make([]string, 0, len(obs))
	for _, o := range obs {
		parts = append(parts, o.Describe())
	}
	return fmt.Sprintf("%s: %s matched %s", r.Name, assetName(st), strings.Join(parts, ", "))
}

func assetName(st models.AssetState) string {
	if st.Name != "" {
		return st.Name
	}
	if st.Snapshot != nil && st.Snapshot.Name != "" {
		return st.Snapshot.Name
	}
	return st.Symbol
}

// TriggeredRuleIDs returns the distinct rule ids in ns, in first-seen order.
func TriggeredRuleIDs(ns []models.Notification) []string {
	seen := make(map[string]struct{}, len(ns))
	var ids []string
	for _, n := range ns {
		if _, ok := seen[n.RuleID]; ok {
			continue
		}
		seen[n.RuleID] = struct{}{}
		ids = append(ids, n.RuleID)
	}
	return ids
}

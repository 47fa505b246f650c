package usecase

import (
	"context"
	"fmt"
	"strings"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	"RiskWatch/internal/repository"
	"RiskWatch/internal/services/watch"
)

// InvalidError reports a request that is well-formed but semantically wrong.
type InvalidError struct {
	Field string
	Msg   string
}

func (e *InvalidError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// RulesUseCase is the configuration surface for watch rules.
type RulesUseCase struct {
	store     *repository.RuleStore
	evaluator *watch.Evaluator
}

func NewRulesUseCase(store *repository.RuleStore, evaluator *watch.Evaluator) *RulesUseCase {
	return &RulesUseCase{store: store, evaluator: evaluator}
}

func (uc *RulesUseCase) List(ctx context.Context) []models.WatchRule {
	return uc.store.Load(ctx)
}

func (uc *RulesUseCase) Get(ctx context.Context, id string) (models.WatchRule, error) {
	r, ok := uc.store.Get(ctx, id)
	if !ok {
		return models.WatchRule{}, fmt.Errorf("rule %s: %w", id, domrepo.ErrNotFound)
	}
	return r, nil
}

// Create stores a new rule. Rules are enabled unless the request says otherwise.
func (uc *RulesUseCase) Create(ctx context.Context, req models.CreateRuleRequest) (models.WatchRule, error) {
	scope := normalizeScope(req.Scope)
	if !scope.Valid() {
		return models.WatchRule{}, &InvalidError{Field: "scope", Msg: `must be "all" or a non-empty symbol list`}
	}
	conds := models.ToConditions(req.Conditions)
	if err := checkConditions(conds); err != nil {
		return models.WatchRule{}, err
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return uc.store.Add(ctx, models.WatchRule{
		Name:       strings.TrimSpace(req.Name),
		Enabled:    enabled,
		Scope:      scope,
		Conditions: conds,
	}), nil
}

// Update merges the provided fields into the rule.
func (uc *RulesUseCase) Update(ctx context.Context, req models.UpdateRuleRequest) (models.WatchRule, error) {
	var p models.RulePatch
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return models.WatchRule{}, &InvalidError{Field: "name", Msg: "cannot be empty"}
		}
		p.Name = &name
	}
	p.Enabled = req.Enabled
	if req.Scope != nil {
		scope := normalizeScope(*req.Scope)
		if !scope.Valid() {
			return models.WatchRule{}, &InvalidError{Field: "scope", Msg: `must be "all" or a non-empty symbol list`}
		}
		p.Scope = &scope
	}
	if req.Conditions != nil {
		conds := models.ToConditions(*req.Conditions)
		if err := checkConditions(conds); err != nil {
			return models.WatchRule{}, err
		}
		p.Conditions = &conds
	}

	r, ok := uc.store.Update(ctx, req.ID, p)
	if !ok {
		return models.WatchRule{}, fmt.Errorf("rule %s: %w", req.ID, domrepo.ErrNotFound)
	}
	return r, nil
}

// Delete removes the rule and its cooldown entries.
func (uc *RulesUseCase) Delete(ctx context.Context, id string) error {
	if !uc.store.Delete(ctx, id) {
		return fmt.Errorf("rule %s: %w", id, domrepo.ErrNotFound)
	}
	uc.evaluator.Forget(id)
	return nil
}

func normalizeScope(s models.Scope) models.Scope {
	if s.All {
		return s
	}
	seen := make(map[string]bool, len(s.Symbols))
	out := make([]string, 0, len(s.Symbols))
	for _, sym := range s.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return models.SymbolScope(out...)
}

// checkConditions rejects thresholds the evaluator could never satisfy.
func checkConditions(conds []models.Condition) error {
	for i, c := range conds {
		field := fmt.Sprintf("conditions[%d]", i)
		if !c.Type.Valid() {
			return &InvalidError{Field: field + ".type", Msg: fmt.Sprintf("unknown type %q", c.Type)}
		}
		if !c.Operator.Valid() {
			return &InvalidError{Field: field + ".operator", Msg: fmt.Sprintf("unknown operator %q", c.Operator)}
		}
		switch c.Type {
		case models.CondNewsRiskTag:
			if strings.TrimSpace(c.Tag) == "" {
				return &InvalidError{Field: field + ".tag", Msg: "required for news_risk_tag"}
			}
		case models.CondRiskLevel:
		default:
			if c.Threshold.IsText {
				return &InvalidError{Field: field + ".threshold", Msg: "must be a number"}
			}
		}
	}
	return nil
}

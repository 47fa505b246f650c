package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ConditionType enumerates the signals a watch condition can compare.
type ConditionType string

const (
	CondNewsRiskTag         ConditionType = "news_risk_tag"
	CondSocialNegativeRatio ConditionType = "social_negative_ratio"
	CondOnChainNetflow      ConditionType = "onchain_netflow"
	CondOnChainActiveAddr   ConditionType = "onchain_active_address"
	CondPriceChange         ConditionType = "price_change"
	CondRiskScore           ConditionType = "risk_score"
	CondRiskLevel           ConditionType = "risk_level"
)

// Valid reports whether t is a known condition type.
func (t ConditionType) Valid() bool {
	switch t {
	case CondNewsRiskTag, CondSocialNegativeRatio, CondOnChainNetflow, CondOnChainActiveAddr,
		CondPriceChange, CondRiskScore, CondRiskLevel:
		return true
	}
	return false
}

// Operator is a comparison operator.
type Operator string

const (
	OpGT Operator = ">"
	OpLT Operator = "<"
	OpGE Operator = ">="
	OpLE Operator = "<="
	OpEQ Operator = "=="
)

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	switch o {
	case OpGT, OpLT, OpGE, OpLE, OpEQ:
		return true
	}
	return false
}

// Threshold is either a number or a risk level name.
// On the wire it is a JSON number or a JSON string.
type Threshold struct {
	Number float64
	Level  RiskLevel
	IsText bool
}

// NumberThreshold builds a numeric threshold.
func NumberThreshold(v float64) Threshold { return Threshold{Number: v} }

// LevelThreshold builds a risk-level threshold.
func LevelThreshold(l RiskLevel) Threshold { return Threshold{Level: l, IsText: true} }

// Ordinal resolves the threshold to a risk-level ordinal. Numbers are taken as ordinals directly.
func (t Threshold) Ordinal() (float64, bool) {
	if t.IsText {
		o := t.Level.Ordinal()
		return float64(o), o > 0
	}
	return t.Number, true
}

func (t Threshold) String() string {
	if t.IsText {
		return string(t.Level)
	}
	return strconv.FormatFloat(t.Number, 'f', -1, 64)
}

func (t Threshold) MarshalJSON() ([]byte, error) {
	if t.IsText {
		return json.Marshal(string(t.Level))
	}
	return json.Marshal(t.Number)
}

func (t *Threshold) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if lvl, ok := ParseRiskLevel(s); ok {
			*t = LevelThreshold(lvl)
			return nil
		}
		// numeric strings are tolerated, some UIs send "5"
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("threshold %q: not a number or risk level", s)
		}
		*t = NumberThreshold(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("threshold: %w", err)
	}
	*t = NumberThreshold(v)
	return nil
}

// Condition is a single comparison inside a rule.
type Condition struct {
	Type      ConditionType `json:"type"`
	Operator  Operator      `json:"operator"`
	Threshold Threshold     `json:"threshold"`
	Tag       string        `json:"tag,omitempty"`
}

// Scope selects the assets a rule applies to: every asset, or an explicit symbol set.
// JSON form is the string "all" or an array of symbols.
type Scope struct {
	All     bool
	Symbols []string
}

// AllAssets is the catch-all scope.
func AllAssets() Scope { return Scope{All: true} }

// SymbolScope scopes a rule to the given symbols.
func SymbolScope(symbols ...string) Scope { return Scope{Symbols: symbols} }

// Includes reports whether symbol is in scope. Symbol matching ignores case.
func (s Scope) Includes(symbol string) bool {
	if s.All {
		return true
	}
	for _, sym := range s.Symbols {
		if strings.EqualFold(sym, symbol) {
			return true
		}
	}
	return false
}

// Valid rejects an explicit scope that names no symbols.
func (s Scope) Valid() bool { return s.All || len(s.Symbols) > 0 }

func (s Scope) MarshalJSON() ([]byte, error) {
	if s.All {
		return []byte(`"all"`), nil
	}
	if s.Symbols == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Symbols)
}

func (s *Scope) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		if !strings.EqualFold(v, "all") {
			return fmt.Errorf("scope %q: expected \"all\" or a symbol list", v)
		}
		*s = AllAssets()
		return nil
	}
	var syms []string
	if err := json.Unmarshal(b, &syms); err != nil {
		return fmt.Errorf("scope: %w", err)
	}
	*s = SymbolScope(syms...)
	return nil
}

// WatchRule is a user-defined conjunction of conditions.
type WatchRule struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Enabled         bool        `json:"enabled"`
	Scope           Scope       `json:"scope"`
	Conditions      []Condition `json:"conditions"`
	CreatedAt       time.Time   `json:"createdAt"`
	LastTriggeredAt *time.Time  `json:"lastTriggeredAt"`
}

// RulePatch carries the fields of a partial rule update. Nil fields are left as they are.
type RulePatch struct {
	Name            *string      `json:"name,omitempty"`
	Enabled         *bool        `json:"enabled,omitempty"`
	Scope           *Scope       `json:"scope,omitempty"`
	Conditions      *[]Condition `json:"conditions,omitempty"`
	LastTriggeredAt *time.Time   `json:"lastTriggeredAt,omitempty"`
}

// Apply merges p into r.
func (p RulePatch) Apply(r *WatchRule) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if p.Scope != nil {
		r.Scope = *p.Scope
	}
	if p.Conditions != nil {
		r.Conditions = append([]Condition(nil), (*p.Conditions)...)
	}
	if p.LastTriggeredAt != nil {
		t := *p.LastTriggeredAt
		r.LastTriggeredAt = &t
	}
}

// Notification is produced by a rule match. Only Read changes after creation.
type Notification struct {
	ID          string    `json:"id"`
	RuleID      string    `json:"ruleId"`
	RuleName    string    `json:"ruleName"`
	Symbol      string    `json:"symbol"`
	AssetName   string    `json:"assetName"`
	Message     string    `json:"message"`
	TriggeredAt time.Time `json:"triggeredAt"`
	Read        bool      `json:"read"`
}

// Validate performs the dispatcher's sanity check before delivery.
func (n Notification) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("notification: id empty")
	}
	if n.RuleID == "" {
		return fmt.Errorf("notification %s: rule id empty", n.ID)
	}
	if n.Symbol == "" {
		return fmt.Errorf("notification %s: symbol empty", n.ID)
	}
	if n.TriggeredAt.IsZero() {
		return fmt.Errorf("notification %s: trigger time unset", n.ID)
	}
	return nil
}

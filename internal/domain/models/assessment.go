package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RiskLevel is the discrete classification of a risk score.
type RiskLevel string

const (
	LevelLow         RiskLevel = "LOW"
	LevelMedium      RiskLevel = "MEDIUM"
	LevelHigh        RiskLevel = "HIGH"
	LevelExtreme     RiskLevel = "EXTREME"
	LevelUnavailable RiskLevel = "UNAVAILABLE"
)

// Ordinal maps a level to LOW=1 .. EXTREME=4. Unknown and unavailable levels are 0.
func (l RiskLevel) Ordinal() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	case LevelExtreme:
		return 4
	default:
		return 0
	}
}

// ParseRiskLevel accepts any case; it returns false for unknown names.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	l := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if l.Ordinal() == 0 {
		return "", false
	}
	return l, true
}

// RiskScore is either an available integer score in [0,100] or unavailable.
// The zero value is unavailable.
type RiskScore struct {
	value     int
	available bool
}

// ScoreOf returns an available score clamped to [0,100].
func ScoreOf(v int) RiskScore {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return RiskScore{value: v, available: true}
}

// UnavailableScore returns the explicit "cannot compute" score.
func UnavailableScore() RiskScore { return RiskScore{} }

// Value returns the score and whether it is available.
func (s RiskScore) Value() (int, bool) { return s.value, s.available }

// Available reports whether the score was computed.
func (s RiskScore) Available() bool { return s.available }

func (s RiskScore) String() string {
	if !s.available {
		return "unavailable"
	}
	return fmt.Sprintf("%d", s.value)
}

// MarshalJSON encodes an unavailable score as null.
func (s RiskScore) MarshalJSON() ([]byte, error) {
	if !s.available {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

// UnmarshalJSON accepts an integer or null.
func (s *RiskScore) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = UnavailableScore()
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("risk score: %w", err)
	}
	*s = ScoreOf(v)
	return nil
}

// ScoreBreakdown keeps the normalized sub-scores that produced the composite.
type ScoreBreakdown struct {
	News    float64 `json:"news"`
	Social  float64 `json:"social"`
	OnChain float64 `json:"onChain"`
}

// Assessment is the per-asset, per-cycle risk result. It is replaced, never mutated, by the next cycle.
type Assessment struct {
	Symbol        string          `json:"symbol"`
	Score         RiskScore       `json:"score"`
	Level         RiskLevel       `json:"level"`
	Summary       string          `json:"summary,omitempty"`
	SummarySource string          `json:"summarySource,omitempty"`
	Breakdown     *ScoreBreakdown `json:"breakdown,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	ComputedAt    time.Time       `json:"computedAt"`
}

// Unavailable builds the explicit "cannot analyze" assessment for symbol.
func Unavailable(symbol, reason string, at time.Time) Assessment {
	return Assessment{
		Symbol:     symbol,
		Score:      UnavailableScore(),
		Level:      LevelUnavailable,
		Reason:     reason,
		ComputedAt: at,
	}
}

// IsAvailable reports whether the assessment carries a computed score.
func (a Assessment) IsAvailable() bool { return a.Score.Available() && a.Level != LevelUnavailable }

// AssetState pairs the latest snapshot with its assessment; the watch evaluator matches against it.
type AssetState struct {
	Symbol     string     `json:"symbol"`
	Name       string     `json:"name,omitempty"`
	Snapshot   *Snapshot  `json:"snapshot,omitempty"`
	Assessment Assessment `json:"assessment"`
}

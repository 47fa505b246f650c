package watch

import (
	"fmt"
	"math"

	"RiskWatch/internal/domain/models"
)

// Epsilon is the tolerance of the == operator.
const Epsilon = 0.01

// Compare applies op to actual and threshold. Unknown operators never match.
func Compare(op models.Operator, actual, threshold float64) bool {
	switch op {
	case models.OpGT:
		return actual > threshold
	case models.OpLT:
		return actual < threshold
	case models.OpGE:
		return actual >= threshold
	case models.OpLE:
		return actual <= threshold
	case models.OpEQ:
		return math.Abs(actual-threshold) < Epsilon
	default:
		return false
	}
}

// Observation is the value a condition looked at, kept for the notification message.
type Observation struct {
	Condition models.Condition
	Actual    string
}

// Match evaluates one condition against an asset. ok is false when the condition does not hold,
// including when the signal it needs is absent.
func Match(c models.Condition, st models.AssetState) (obs Observation, ok bool) {
	obs.Condition = c
	snap := models.Snapshot{}
	if st.Snapshot != nil {
		snap = *st.Snapshot
	}

	switch c.Type {
	case models.CondNewsRiskTag:
		if c.Tag == "" || !snap.News.HasTag(c.Tag) {
			return obs, false
		}
		obs.Actual = c.Tag
		return obs, true

	case models.CondSocialNegativeRatio:
		if snap.Social == nil || snap.Social.TotalCount == 0 {
			return obs, false
		}
		v := snap.Social.NegativeRatio() * 100
		obs.Actual = fmt.Sprintf("%.1f%%", v)
		return obs, numeric(c, v)

	case models.CondOnChainNetflow:
		if snap.OnChain == nil {
			return obs, false
		}
		v := snap.OnChain.NetflowPercent
		obs.Actual = fmt.Sprintf("%+.1f%%", v)
		return obs, numeric(c, v)

	case models.CondOnChainActiveAddr:
		if snap.OnChain == nil {
			return obs, false
		}
		v := snap.OnChain.ActiveAddressChange
		obs.Actual = fmt.Sprintf("%+.1f%%", v)
		return obs, numeric(c, v)

	case models.CondPriceChange:
		v, defined := snap.PriceChange()
		if !defined {
			return obs, false
		}
		obs.Actual = fmt.Sprintf("%+.1f%%", v)
		return obs, numeric(c, v)

	case models.CondRiskScore:
		v, available := st.Assessment.Score.Value()
		if !available {
			return obs, false
		}
		obs.Actual = fmt.Sprintf("%d", v)
		return obs, numeric(c, float64(v))

	case models.CondRiskLevel:
		if !st.Assessment.IsAvailable() {
			return obs, false
		}
		actual := st.Assessment.Level.Ordinal()
		want, valid := c.Threshold.Ordinal()
		if actual == 0 || !valid {
			return obs, false
		}
		obs.Actual = string(st.Assessment.Level)
		return obs, Compare(c.Operator, float64(actual), want)
	}
	return obs, false
}

// numeric compares against a numeric threshold; level-name thresholds never match numeric fields.
func numeric(c models.Condition, v float64) bool {
	if c.Threshold.IsText {
		return false
	}
	return Compare(c.Operator, v, c.Threshold.Number)
}

// Describe renders one observation, e.g. "price change +7.2% > 5".
func (o Observation) Describe() string {
	c := o.Condition
	switch c.Type {
	case models.CondNewsRiskTag:
		return fmt.Sprintf("news tagged %q", c.Tag)
	case models.CondSocialNegativeRatio:
		return fmt.Sprintf("social negative %s %s %s%%", o.Actual, c.Operator, c.Threshold)
	case models.CondOnChainNetflow:
		return fmt.Sprintf("netflow %s %s %s%%", o.Actual, c.Operator, c.Threshold)
	case models.CondOnChainActiveAddr:
		return fmt.Sprintf("active addresses %s %s %s%%", o.Actual, c.Operator, c.Threshold)
	case models.CondPriceChange:
		return fmt.Sprintf("price change %s %s %s%%", o.Actual, c.Operator, c.Threshold)
	case models.CondRiskScore:
		return fmt.Sprintf("risk score %s %s %s", o.Actual, c.Operator, c.Threshold)
	case models.CondRiskLevel:
		return fmt.Sprintf("risk level %s %s %s", o.Actual, c.Operator, c.Threshold)
	}
	return string(c.Type)
}

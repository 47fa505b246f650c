package summary

import (
	"context"
	"fmt"
	"math"

	"RiskWatch/internal/domain/models"
	domsvc "RiskWatch/internal/domain/service"
)

// MaxLength bounds every summary, in characters.
const MaxLength = 100

const (
	bigMove        = 5.0
	moderateMove   = 2.0
	strongNeg      = 30.0
	contextNeg     = 20.0
	highNetflow    = 20.0
	activeAddrJump = 10.0
)

// RuleBased is the deterministic fallback summarizer. It never fails and never mentions the numeric score.
type RuleBased struct{}

func NewRuleBased() *RuleBased { return &RuleBased{} }

var _ domsvc.Summarizer = (*RuleBased)(nil)

func (RuleBased) Summarize(_ context.Context, snap models.Snapshot, a models.Assessment) (string, error) {
	return Truncate(Describe(snap, a)), nil
}

type facts struct {
	pc, newsNeg, socialNeg float64
	hasPC, hasOnChain      bool
	netflow, active        float64
	newsPos, newsNegCount  int
}

func gather(snap models.Snapshot) facts {
	f := facts{
		newsNeg:   snap.News.NegativeRatio() * 100,
		socialNeg: snap.Social.NegativeRatio() * 100,
	}
	f.pc, f.hasPC = snap.PriceChange()
	if snap.OnChain != nil {
		f.hasOnChain = true
		f.netflow = snap.OnChain.NetflowPercent
		f.active = snap.OnChain.ActiveAddressChange
	}
	if snap.News != nil {
		f.newsPos = snap.News.PositiveCount
		f.newsNegCount = snap.News.NegativeCount
	}
	return f
}

// dominant returns the larger negative share and the channel it came from.
func (f facts) dominant() (float64, string) {
	if f.socialNeg > f.newsNeg {
		return f.socialNeg, "social"
	}
	return f.newsNeg, "news"
}

// Describe renders the first matching rule, top to bottom.
func Describe(snap models.Snapshot, a models.Assessment) string {
	if !a.IsAvailable() {
		return "Not enough news or social data to assess risk right now."
	}
	f := gather(snap)
	drop := f.hasPC && f.pc < -bigMove
	rise := f.hasPC && f.pc > bigMove

	switch {
	case drop && (f.newsNeg > strongNeg || f.socialNeg > strongNeg):
		neg, src := f.dominant()
		return fmt.Sprintf("Price fell %s with %s negative %s sentiment; selling pressure is broad.", pct(f.pc), pct(neg), src)
	case drop && f.hasOnChain && math.Abs(f.netflow) > highNetflow:
		return fmt.Sprintf("Price fell %s alongside a %s exchange netflow; on-chain stress is elevated.", pct(f.pc), signedPct(f.netflow))
	case drop:
		return fmt.Sprintf("Price fell %s in 24h; a sharp sell-off raises short-term risk.", pct(f.pc))
	case rise && f.newsPos > 2*f.newsNegCount:
		return fmt.Sprintf("Price rose %s on upbeat news (%d positive vs %d negative); watch for overheating.", pct(f.pc), f.newsPos, f.newsNegCount)
	case rise && f.hasOnChain && f.netflow < -highNetflow:
		return fmt.Sprintf("Price rose %s while %s left exchanges; possible overbought divergence.", pct(f.pc), pct(f.netflow))
	case rise:
		return fmt.Sprintf("Price rose %s in 24h; the rally brings elevated volatility.", pct(f.pc))
	case f.hasPC && math.Abs(f.pc) >= moderateMove && math.Abs(f.pc) <= bigMove:
		dir := "rose"
		if f.pc < 0 {
			dir = "slipped"
		}
		msg := fmt.Sprintf("Price %s %s, a moderate move", dir, pct(f.pc))
		if neg, src := f.dominant(); neg > contextNeg {
			msg += fmt.Sprintf(" amid %s negative %s sentiment", pct(neg), src)
		}
		return msg + "."
	case f.hasOnChain && math.Abs(f.netflow) > highNetflow:
		if f.netflow > 0 {
			return fmt.Sprintf("Exchange inflow of %s hints at selling pressure; risk is rising.", pct(f.netflow))
		}
		return fmt.Sprintf("Exchange outflow of %s suggests accumulation; risk is easing.", pct(f.netflow))
	case f.hasOnChain && math.Abs(f.active) > activeAddrJump:
		if f.active > 0 {
			return fmt.Sprintf("Active addresses surged %s; network activity is picking up.", pct(f.active))
		}
		return fmt.Sprintf("Active addresses dropped %s; network activity is fading.", pct(f.active))
	}
	return byLevel(a.Level, f)
}

func byLevel(level models.RiskLevel, f facts) string {
	neg, src := f.dominant()
	var prefix string
	switch level {
	case models.LevelExtreme:
		prefix = "Extreme risk"
	case models.LevelHigh:
		prefix = "High risk"
	case models.LevelMedium:
		prefix = "Moderate risk"
	default:
		prefix = "Low risk"
	}
	if neg <= 0 {
		return prefix + " with mixed signals."
	}
	return fmt.Sprintf("%s, driven by %s negative %s sentiment.", prefix, pct(neg), src)
}

func pct(v float64) string { return fmt.Sprintf("%.1f%%", math.Abs(v)) }

func signedPct(v float64) string { return fmt.Sprintf("%+.1f%%", v) }

// Truncate cuts s to MaxLength runes, ending with "..." when shortened.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxLength {
		return s
	}
	return string(r[:MaxLength-3]) + "..."
}

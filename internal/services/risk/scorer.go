package risk

import (
	"math"
	"time"

	"RiskWatch/internal/domain/models"
	domsvc "RiskWatch/internal/domain/service"
)

// Sub-score weights of the composite.
const (
	newsWeight    = 0.4
	socialWeight  = 0.3
	onChainWeight = 0.3

	highThreshold   = 70
	mediumThreshold = 40

	maxTagStrength = 40.0
	unknownTag     = 10.0
)

var tagWeights = map[string]float64{
	"hack":           40,
	"exploit":        40,
	"fraud":          35,
	"market_crash":   30,
	"exchange_issue": 25,
	"regulation":     20,
	"lawsuit":        20,
	"technical":      15,
	"other":          10,
}

// Scorer computes the composite risk assessment. It is pure; Now only stamps ComputedAt.
type Scorer struct {
	Now func() time.Time
}

func NewScorer() *Scorer { return &Scorer{Now: time.Now} }

var _ domsvc.RiskScorer = (*Scorer)(nil)

// Score maps snap to an assessment. Without news and social data the result is unavailable.
func (s *Scorer) Score(snap models.Snapshot) models.Assessment {
	now := time.Now
	if s != nil && s.Now != nil {
		now = s.Now
	}
	at := now()
	if snap.News == nil && snap.Social == nil {
		return models.Unavailable(snap.Symbol, "no news or social data", at)
	}
	if err := snap.Validate(); err != nil {
		return models.Unavailable(snap.Symbol, "malformed snapshot: "+err.Error(), at)
	}

	b := Breakdown(snap)
	score := Composite(b)
	return models.Assessment{
		Symbol:     snap.Symbol,
		Score:      models.ScoreOf(score),
		Level:      Classify(score),
		Breakdown:  &b,
		ComputedAt: at,
	}
}

// Breakdown computes the three normalized sub-scores. Missing categories count as zeros.
func Breakdown(snap models.Snapshot) models.ScoreBreakdown {
	onchain := models.OnChainSignals{}
	if snap.OnChain != nil {
		onchain = *snap.OnChain
	}
	return models.ScoreBreakdown{
		News:    NewsScore(snap.News),
		Social:  SocialScore(snap.Social),
		OnChain: OnChainScore(onchain),
	}
}

// Composite rounds the weighted sum and clamps it into [0,100].
func Composite(b models.ScoreBreakdown) int {
	v := math.Round(b.News*newsWeight + b.Social*socialWeight + b.OnChain*onChainWeight)
	return int(math.Max(0, math.Min(100, v)))
}

// Classify maps a score to the base levels. EXTREME only comes from Escalate.
func Classify(score int) models.RiskLevel {
	switch {
	case score >= highThreshold:
		return models.LevelHigh
	case score >= mediumThreshold:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}

// NewsScore = negRatio*60 + tag strength.
func NewsScore(n *models.NewsSignals) float64 {
	if n == nil {
		return 0
	}
	return n.NegativeRatio()*60 + TagStrength(n.UniqueTags())
}

// TagStrength seeds from the heaviest tag and adds 10% per extra tag, capped at 40.
func TagStrength(tags []string) float64 {
	if len(tags) == 0 {
		return 0
	}
	maxW := 0.0
	for _, t := range tags {
		if w := TagWeight(t); w > maxW {
			maxW = w
		}
	}
	return math.Min(maxTagStrength, maxW*(1+float64(len(tags)-1)*0.1))
}

// TagWeight returns the weight for tag, or the unknown-tag weight.
func TagWeight(tag string) float64 {
	if w, ok := tagWeights[tag]; ok {
		return w
	}
	return unknownTag
}

func SocialScore(s *models.SocialSignals) float64 {
	if s == nil {
		return 0
	}
	return s.NegativeRatio() * 100
}

func OnChainScore(o models.OnChainSignals) float64 {
	return NetflowScore(o.NetflowPercent)*0.6 + ActiveAddressScore(o.ActiveAddressChange)*0.4
}

// NetflowScore treats net inflow to exchanges as riskier than outflow.
func NetflowScore(p float64) float64 {
	switch {
	case p >= 30:
		return 100
	case p >= 20:
		return 80
	case p >= 10:
		return 60
	case p >= 0:
		return 40
	case p >= -10:
		return 30
	case p >= -20:
		return 20
	default:
		return 10
	}
}

// ActiveAddressScore treats a drop in active addresses as riskier than a rise.
func ActiveAddressScore(p float64) float64 {
	switch {
	case p <= -20:
		return 100
	case p <= -10:
		return 70
	case p <= 0:
		return 50
	case p <= 10:
		return 40
	case p <= 20:
		return 30
	default:
		return 20
	}
}

// Escalate promotes a HIGH assessment to EXTREME when the collaborator flagged at least one anomaly.
func Escalate(a models.Assessment, anomalyFlags []string) models.Assessment {
	if a.Level != models.LevelHigh || !a.IsAvailable() {
		return a
	}
	for _, f := range anomalyFlags {
		if f != "" {
			a.Level = models.LevelExtreme
			return a
		}
	}
	return a
}

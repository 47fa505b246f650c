package models

import (
	"fmt"
	"strings"
	"time"
)

// NewsSignals holds sentiment counts and risk tags extracted from news in the current window.
type NewsSignals struct {
	PositiveCount int      `json:"positiveCount"`
	NeutralCount  int      `json:"neutralCount"`
	NegativeCount int      `json:"negativeCount"`
	TotalCount    int      `json:"totalCount"`
	RiskTags      []string `json:"riskTags,omitempty"`
}

// SocialSignals holds sentiment counts from social posts.
type SocialSignals struct {
	PositiveCount int `json:"positiveCount"`
	NeutralCount  int `json:"neutralCount"`
	NegativeCount int `json:"negativeCount"`
	TotalCount    int `json:"totalCount"`
}

// OnChainSignals holds exchange netflow and active address deltas, both in percent.
type OnChainSignals struct {
	NetflowPercent      float64 `json:"netflowPercent"`
	ActiveAddressChange float64 `json:"activeAddressChange"`
}

// VolumeMetrics are the raw market-volume figures some collaborators supply instead of netflow.
type VolumeMetrics struct {
	VolumeShare       float64 `json:"volumeShare"`
	Volume24h         float64 `json:"volume24h"`
	TotalMarketVolume float64 `json:"totalMarketVolume"`
	Price             float64 `json:"price"`
}

// Snapshot is the signal bundle for one asset at one point in time.
// A nil category means the collaborator did not supply it.
type Snapshot struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name,omitempty"`
	News           *NewsSignals    `json:"news,omitempty"`
	Social         *SocialSignals  `json:"social,omitempty"`
	OnChain        *OnChainSignals `json:"onChain,omitempty"`
	Volume         *VolumeMetrics  `json:"volume,omitempty"`
	PriceChange24h *float64        `json:"priceChange24h,omitempty"`
	AnomalyFlags   []string        `json:"anomalyFlags,omitempty"`
	ObservedAt     time.Time       `json:"observedAt"`
}

// Validate reports malformed counts. A malformed snapshot is treated as data-unavailable.
func (s Snapshot) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("symbol empty")
	}
	if s.News != nil {
		if err := validateCounts("news", s.News.NegativeCount, s.News.TotalCount, s.News.PositiveCount, s.News.NeutralCount); err != nil {
			return err
		}
	}
	if s.Social != nil {
		if err := validateCounts("social", s.Social.NegativeCount, s.Social.TotalCount, s.Social.PositiveCount, s.Social.NeutralCount); err != nil {
			return err
		}
	}
	return nil
}

func validateCounts(kind string, neg, total, pos, neutral int) error {
	if neg < 0 || total < 0 || pos < 0 || neutral < 0 {
		return fmt.Errorf("%s: negative count", kind)
	}
	if neg > total {
		return fmt.Errorf("%s: negativeCount %d exceeds totalCount %d", kind, neg, total)
	}
	return nil
}

// NegativeRatio returns negative/total, or 0 when there are no items.
func (n *NewsSignals) NegativeRatio() float64 {
	if n == nil || n.TotalCount == 0 {
		return 0
	}
	return float64(n.NegativeCount) / float64(n.TotalCount)
}

// NegativeRatio returns negative/total, or 0 when there are no items.
func (s *SocialSignals) NegativeRatio() float64 {
	if s == nil || s.TotalCount == 0 {
		return 0
	}
	return float64(s.NegativeCount) / float64(s.TotalCount)
}

// HasTag reports whether the news window carries tag (case-insensitive).
func (n *NewsSignals) HasTag(tag string) bool {
	if n == nil || tag == "" {
		return false
	}
	for _, t := range n.RiskTags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// UniqueTags returns the lower-cased risk tags with duplicates removed, in first-seen order.
func (n *NewsSignals) UniqueTags() []string {
	if n == nil || len(n.RiskTags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(n.RiskTags))
	out := make([]string, 0, len(n.RiskTags))
	for _, t := range n.RiskTags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// PriceChange returns the 24h change and whether it is defined.
func (s Snapshot) PriceChange() (float64, bool) {
	if s.PriceChange24h == nil {
		return 0, false
	}
	return *s.PriceChange24h, true
}

// Float returns a pointer to v, handy for optional fields.
func Float(v float64) *float64 { return &v }

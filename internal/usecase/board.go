package usecase

import (
	"strings"
	"sync"
	"time"

	"RiskWatch/internal/domain/models"
)

// AnalysisBoard holds the latest complete batch of asset states. A cycle replaces the whole
// batch at once, so readers never see a mix of two cycles.
type AnalysisBoard struct {
	mu        sync.RWMutex
	states    []models.AssetState
	index     map[string]int
	updatedAt time.Time
}

func NewAnalysisBoard() *AnalysisBoard {
	return &AnalysisBoard{index: map[string]int{}}
}

// Replace swaps in a new batch.
func (b *AnalysisBoard) Replace(states []models.AssetState, at time.Time) {
	cp := make([]models.AssetState, len(states))
	copy(cp, states)
	idx := make(map[string]int, len(cp))
	for i, st := range cp {
		idx[strings.ToUpper(st.Symbol)] = i
	}

	b.mu.Lock()
	b.states = cp
	b.index = idx
	b.updatedAt = at
	b.mu.Unlock()
}

// All returns a copy of the current batch in configured asset order.
func (b *AnalysisBoard) All() []models.AssetState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.AssetState, len(b.states))
	copy(out, b.states)
	return out
}

// Get looks a symbol up ignoring case.
func (b *AnalysisBoard) Get(symbol string) (models.AssetState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[strings.ToUpper(symbol)]
	if !ok {
		return models.AssetState{}, false
	}
	return b.states[i], true
}

// UpdatedAt is the time of the last Replace; zero before the first cycle.
func (b *AnalysisBoard) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updatedAt
}

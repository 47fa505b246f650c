package service

import (
	"context"

	"RiskWatch/internal/domain/models"
)

// Summarizer produces a short explanation of an assessment.
type Summarizer interface {
	Summarize(ctx context.Context, snap models.Snapshot, a models.Assessment) (string, error)
}

// RiskScorer maps a snapshot to an assessment without side effects.
type RiskScorer interface {
	Score(snap models.Snapshot) models.Assessment
}

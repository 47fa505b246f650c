package usecase

import (
	"context"
	"fmt"
	"time"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
)

// AssessmentsUseCase reads the analysis board and scores ad-hoc snapshots.
type AssessmentsUseCase struct {
	board *AnalysisBoard
	cycle *RefreshCycle
}

func NewAssessmentsUseCase(board *AnalysisBoard, cycle *RefreshCycle) *AssessmentsUseCase {
	return &AssessmentsUseCase{board: board, cycle: cycle}
}

// AssessmentList is the dashboard payload.
type AssessmentList struct {
	Assets    []models.AssetState `json:"assets"`
	UpdatedAt *time.Time          `json:"updatedAt"`
}

func (uc *AssessmentsUseCase) List() AssessmentList {
	out := AssessmentList{Assets: uc.board.All()}
	if at := uc.board.UpdatedAt(); !at.IsZero() {
		out.UpdatedAt = &at
	}
	return out
}

func (uc *AssessmentsUseCase) Get(symbol string) (models.AssetState, error) {
	st, ok := uc.board.Get(symbol)
	if !ok {
		return models.AssetState{}, fmt.Errorf("asset %s: %w", symbol, domrepo.ErrNotFound)
	}
	return st, nil
}

// Score assesses snap without touching the board, the archive or the watch rules.
func (uc *AssessmentsUseCase) Score(ctx context.Context, snap models.Snapshot) models.AssetState {
	return uc.cycle.Assess(ctx, snap)
}

package repository

import (
	"context"
	"errors"

	"RiskWatch/internal/domain/models"
)

// ErrNoData is returned by a SignalSource that has nothing for the asset.
var ErrNoData = errors.New("no signal data")

// Asset identifies a tracked asset.
type Asset struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Name   string `yaml:"name" json:"name"`
}

// SignalSource supplies the latest signal snapshot for an asset.
type SignalSource interface {
	Fetch(ctx context.Context, asset Asset) (models.Snapshot, error)
}

package repository

import (
	"context"
	"errors"

	"RiskWatch/internal/domain/models"
)

// ErrNotFound is returned by a KVStore when the key has never been saved.
var ErrNotFound = errors.New("key not found")

// KVStore is the persistence port for the rule store and notification history.
type KVStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// NotificationSink delivers notifications to one destination.
// External sinks (webhooks, brokers) are rate limited by the dispatcher; in-app sinks are not.
type NotificationSink interface {
	Name() string
	External() bool
	Send(ctx context.Context, n models.Notification) error
}

// AssessmentArchive stores cycle results for later analysis.
type AssessmentArchive interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, batch []models.AssetState) error
	Close() error
}

type Metrics interface {
	RecordCycle(seconds float64, assets int)
	RecordAssessment(symbol string, level models.RiskLevel, score models.RiskScore)
	RecordNotification(sink string)
	RecordSuppressed(ruleID string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

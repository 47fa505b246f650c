package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	pkgkafka "RiskWatch/pkg/kafka"
	applogger "RiskWatch/pkg/logger"
)

// Board keeps the latest snapshot per symbol as pushed by the signal topic.
// Entries older than maxAge read as missing.
type Board struct {
	mu     sync.RWMutex
	m      map[string]models.Snapshot
	maxAge time.Duration
	now    func() time.Time
}

var _ domrepo.SignalSource = (*Board)(nil)

func NewBoard(maxAge time.Duration) *Board {
	return &Board{m: make(map[string]models.Snapshot), maxAge: maxAge, now: time.Now}
}

// Put stores snap unless a newer one for the same symbol is already held.
func (b *Board) Put(snap models.Snapshot) bool {
	key := strings.ToUpper(snap.Symbol)
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.m[key]; ok && cur.ObservedAt.After(snap.ObservedAt) {
		return false
	}
	b.m[key] = snap
	return true
}

func (b *Board) Fetch(_ context.Context, asset domrepo.Asset) (models.Snapshot, error) {
	b.mu.RLock()
	snap, ok := b.m[strings.ToUpper(asset.Symbol)]
	b.mu.RUnlock()
	if !ok {
		return models.Snapshot{}, fmt.Errorf("%s: %w", asset.Symbol, domrepo.ErrNoData)
	}
	if b.maxAge > 0 && b.now().Sub(snap.ObservedAt) > b.maxAge {
		return models.Snapshot{}, fmt.Errorf("%s: snapshot from %s is stale: %w",
			asset.Symbol, snap.ObservedAt.Format(time.RFC3339), domrepo.ErrNoData)
	}
	if snap.Name == "" {
		snap.Name = asset.Name
	}
	return snap, nil
}

// Len returns the number of symbols held.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.m)
}

// SnapshotHandler feeds the board from the signal topic.
type SnapshotHandler struct {
	topic    string
	board    *Board
	baseline float64
	tracked  map[string]string
	now      func() time.Time
	l        *applogger.Logger
}

var _ pkgkafka.MessageHandler = (*SnapshotHandler)(nil)

// NewSnapshotHandler accepts only the tracked assets; others are dropped by Accept.
func NewSnapshotHandler(topic string, board *Board, assets []domrepo.Asset, baseline float64, l *applogger.Logger) *SnapshotHandler {
	tracked := make(map[string]string, len(assets))
	for _, a := range assets {
		tracked[strings.ToUpper(a.Symbol)] = a.Name
	}
	return &SnapshotHandler{topic: topic, board: board, baseline: baseline, tracked: tracked, now: time.Now, l: l}
}

func (h *SnapshotHandler) Topic() string { return h.topic }

// Accept reports whether a message keyed by symbol concerns a tracked asset.
func (h *SnapshotHandler) Accept(symbol string) bool {
	_, ok := h.tracked[strings.ToUpper(symbol)]
	return ok
}

func (h *SnapshotHandler) Handle(_ context.Context, data []byte) error {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return &pkgkafka.HookError{Code: "ERR_DECODE", Err: err}
	}
	if strings.TrimSpace(snap.Symbol) == "" {
		return &pkgkafka.HookError{Code: "ERR_VALIDATION", Err: fmt.Errorf("snapshot without symbol")}
	}
	name, ok := h.tracked[strings.ToUpper(snap.Symbol)]
	if !ok {
		return nil
	}
	normalize(&snap, snap.Symbol, name, h.baseline)
	if snap.ObservedAt.IsZero() {
		snap.ObservedAt = h.now().UTC()
	}
	if !h.board.Put(snap) {
		h.l.Debug("signals: out-of-order snapshot dropped", applogger.String("symbol", snap.Symbol))
	}
	return nil
}

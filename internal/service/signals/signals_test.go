package signals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	"RiskWatch/pkg/config"
	applogger "RiskWatch/pkg/logger"
)

func testSource(t *testing.T, h http.HandlerFunc) *HTTPSource {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := config.Default()
	cfg.Signals.BaseURL = srv.URL + "/"
	cfg.Signals.ActiveAddressBaseline = 1000
	return NewHTTPSource(cfg)
}

func TestHTTPSource_Fetch(t *testing.T) {
	src := testSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/signals/BTC", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"news": {"negativeCount": 4, "totalCount": 10, "riskTags": ["hack"]},
			"social": {"negativeCount": 3, "totalCount": 10},
			"volume": {"volumeShare": 12, "volume24h": 1500},
			"priceChange24h": -6.5
		}`))
	})

	snap, err := src.Fetch(context.Background(), domrepo.Asset{Symbol: "BTC", Name: "Bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, "BTC", snap.Symbol)
	assert.Equal(t, "Bitcoin", snap.Name)
	require.NotNil(t, snap.OnChain)
	assert.InDelta(t, 12, snap.OnChain.NetflowPercent, 1e-9)
	assert.InDelta(t, 50, snap.OnChain.ActiveAddressChange, 1e-9)
	assert.False(t, snap.ObservedAt.IsZero())
	pc, ok := snap.PriceChange()
	assert.True(t, ok)
	assert.Equal(t, -6.5, pc)
}

func TestHTTPSource_NoData(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"empty document", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{}`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testSource(t, tt.h)
			_, err := src.Fetch(context.Background(), domrepo.Asset{Symbol: "ETH"})
			assert.ErrorIs(t, err, domrepo.ErrNoData)
		})
	}
}

func TestHTTPSource_UpstreamError(t *testing.T) {
	src := testSource(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := src.Fetch(context.Background(), domrepo.Asset{Symbol: "ETH"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domrepo.ErrNoData)
}

func TestFromVolumeMetrics(t *testing.T) {
	assert.Nil(t, FromVolumeMetrics(nil, 10))

	oc := FromVolumeMetrics(&models.VolumeMetrics{Volume24h: 50, TotalMarketVolume: 1000}, 0)
	assert.InDelta(t, 5, oc.NetflowPercent, 1e-9)
	assert.Zero(t, oc.ActiveAddressChange)

	oc = FromVolumeMetrics(&models.VolumeMetrics{VolumeShare: 3, Volume24h: 80}, 100)
	assert.InDelta(t, 3, oc.NetflowPercent, 1e-9)
	assert.InDelta(t, -20, oc.ActiveAddressChange, 1e-9)
}

func TestBoard_FreshnessAndOrdering(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBoard(5 * time.Minute)
	b.now = func() time.Time { return now }
	asset := domrepo.Asset{Symbol: "btc", Name: "Bitcoin"}

	_, err := b.Fetch(context.Background(), asset)
	assert.ErrorIs(t, err, domrepo.ErrNoData)

	assert.True(t, b.Put(models.Snapshot{Symbol: "BTC", ObservedAt: now.Add(-time.Minute)}))
	assert.False(t, b.Put(models.Snapshot{Symbol: "BTC", ObservedAt: now.Add(-2 * time.Minute)}))

	snap, err := b.Fetch(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin", snap.Name)
	assert.Equal(t, now.Add(-time.Minute), snap.ObservedAt)

	now = now.Add(10 * time.Minute)
	_, err = b.Fetch(context.Background(), asset)
	assert.ErrorIs(t, err, domrepo.ErrNoData)
}

func TestSnapshotHandler(t *testing.T) {
	b := NewBoard(0)
	h := NewSnapshotHandler("signals", b, []domrepo.Asset{{Symbol: "ETH", Name: "Ethereum"}}, 0, applogger.NewNop())

	assert.Equal(t, "signals", h.Topic())
	assert.True(t, h.Accept("eth"))
	assert.False(t, h.Accept("DOGE"))

	payload, err := json.Marshal(models.Snapshot{Symbol: "ETH", Social: &models.SocialSignals{NegativeCount: 1, TotalCount: 2}})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), payload))
	require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"DOGE"}`)))
	assert.Equal(t, 1, b.Len())

	snap, err := b.Fetch(context.Background(), domrepo.Asset{Symbol: "ETH"})
	require.NoError(t, err)
	assert.Equal(t, "Ethereum", snap.Name)

	assert.Error(t, h.Handle(context.Background(), []byte(`not json`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"social":{}}`)))
}

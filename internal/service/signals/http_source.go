package signals

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	"RiskWatch/pkg/config"
	xhttp "RiskWatch/pkg/http"
)

// HTTPSource pulls snapshots from the signal aggregator service.
type HTTPSource struct {
	baseURL  string
	baseline float64
	client   *xhttp.Client
	now      func() time.Time
}

var _ domrepo.SignalSource = (*HTTPSource)(nil)

// NewHTTPSource builds the source from the signals section of cfg.
// The refresh cycle bounds each fetch, so the client timeout is only a backstop.
func NewHTTPSource(cfg *config.Config, opts ...xhttp.ClientOption) *HTTPSource {
	opts = append([]xhttp.ClientOption{
		xhttp.WithTimeout(cfg.Refresh.FetchTimeout + 5*time.Second),
		xhttp.WithUserAgent("riskwatch"),
	}, opts...)
	return &HTTPSource{
		baseURL:  strings.TrimRight(cfg.Signals.BaseURL, "/"),
		baseline: cfg.Signals.ActiveAddressBaseline,
		client:   xhttp.NewClient(opts...),
		now:      time.Now,
	}
}

// Fetch performs GET {base}/signals/{symbol}. A 404 or an empty document is ErrNoData.
func (s *HTTPSource) Fetch(ctx context.Context, asset domrepo.Asset) (models.Snapshot, error) {
	var snap models.Snapshot
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     s.baseURL + "/signals/" + url.PathEscape(asset.Symbol),
		Headers: map[string]string{"Accept": "application/json"},
	}, &snap)
	if xhttp.IsStatus(err, http.StatusNotFound) {
		return models.Snapshot{}, fmt.Errorf("%s: %w", asset.Symbol, domrepo.ErrNoData)
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("fetch signals %s: %w", asset.Symbol, err)
	}
	if snap.News == nil && snap.Social == nil && snap.OnChain == nil && snap.Volume == nil && snap.PriceChange24h == nil {
		return models.Snapshot{}, fmt.Errorf("%s: empty snapshot: %w", asset.Symbol, domrepo.ErrNoData)
	}

	normalize(&snap, asset.Symbol, asset.Name, s.baseline)
	if !strings.EqualFold(snap.Symbol, asset.Symbol) {
		return models.Snapshot{}, fmt.Errorf("fetch signals %s: upstream answered for %s", asset.Symbol, snap.Symbol)
	}
	if snap.ObservedAt.IsZero() {
		snap.ObservedAt = s.now().UTC()
	}
	return snap, nil
}

package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"RiskWatch/internal/domain/models"
	domsvc "RiskWatch/internal/domain/service"
	"RiskWatch/pkg/config"
	xhttp "RiskWatch/pkg/http"
)

// HTTPSummarizer asks an AI summarization service for the text. A circuit breaker skips the
// service quickly after consecutive failures.
type HTTPSummarizer struct {
	baseURL string
	client  *xhttp.Client
	cb      *gobreaker.CircuitBreaker
}

// NewHTTPSummarizer builds the client from the summarizer section of cfg.
func NewHTTPSummarizer(cfg *config.Config) *HTTPSummarizer {
	sc := cfg.Summarizer
	timeout := sc.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	failures := sc.BreakerFailures
	if failures == 0 {
		failures = 3
	}
	st := gobreaker.Settings{Name: "summarizer"}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= failures }
	st.Timeout = sc.BreakerCooldown

	return &HTTPSummarizer{
		baseURL: strings.TrimRight(sc.URL, "/"),
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		cb:      gobreaker.NewCircuitBreaker(st),
	}
}

type summarizeRequest struct {
	Symbol   string           `json:"symbol"`
	Snapshot models.Snapshot  `json:"snapshot"`
	Score    models.RiskScore `json:"score"`
	Level    models.RiskLevel `json:"level"`
	MaxChars int              `json:"maxChars"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

func (s *HTTPSummarizer) Summarize(ctx context.Context, snap models.Snapshot, a models.Assessment) (string, error) {
	if s.baseURL == "" {
		return "", fmt.Errorf("summarizer url not configured")
	}
	out, err := s.cb.Execute(func() (interface{}, error) {
		var resp summarizeResponse
		err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     s.baseURL + "/summarize",
			Headers: map[string]string{"Content-Type": "application/json"},
			Body: summarizeRequest{
				Symbol:   snap.Symbol,
				Snapshot: snap,
				Score:    a.Score,
				Level:    a.Level,
				MaxChars: MaxLength,
			},
		}, &resp)
		if err != nil {
			return nil, err
		}
		text := strings.TrimSpace(resp.Summary)
		if text == "" {
			return nil, errors.New("empty summary")
		}
		return text, nil
	})
	if err != nil {
		return "", fmt.Errorf("post summarize: %w", err)
	}
	return out.(string), nil
}

// State exposes the breaker state for health output.
func (s *HTTPSummarizer) State() string { return s.cb.State().String() }

var _ domsvc.Summarizer = (*HTTPSummarizer)(nil)

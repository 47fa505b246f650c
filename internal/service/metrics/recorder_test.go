package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"RiskWatch/internal/domain/models"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordAssessment("BTC", models.LevelMedium, models.ScoreOf(58))
	r.RecordAssessment("ETH", models.LevelUnavailable, models.UnavailableScore())
	r.RecordNotification("websocket")
	r.RecordNotification("websocket")
	r.RecordSuppressed("r1")
	r.RecordError("fetch")
	r.RecordCycle(0.5, 3)
	r.RecordLatency("summarize", 0.1)

	assert.Equal(t, 58.0, testutil.ToFloat64(r.riskScore.WithLabelValues("BTC")))
	assert.Equal(t, -1.0, testutil.ToFloat64(r.riskScore.WithLabelValues("ETH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.assessments.WithLabelValues("MEDIUM")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.notifications.WithLabelValues("websocket")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.suppressed.WithLabelValues("r1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.cycleAssets))
}

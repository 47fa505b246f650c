package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "RiskWatch/internal/domain/models"
	"RiskWatch/internal/repository"
	"RiskWatch/internal/services/risk"
	"RiskWatch/internal/services/summary"
	"RiskWatch/internal/services/watch"
	"RiskWatch/internal/usecase"
	"RiskWatch/pkg/cache"
	xhttp "RiskWatch/pkg/http"
	xlogger "RiskWatch/pkg/logger"
)

type testAPI struct {
	e       *echo.Echo
	board   *usecase.AnalysisBoard
	history *repository.NotificationHistory
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	l := xlogger.NewNop()
	board := usecase.NewAnalysisBoard()
	rules := repository.NewRuleStore(repository.NewCacheKV(cache.NewMemoryCache()), l)
	history := repository.NewNotificationHistory(repository.NewCacheKV(cache.NewMemoryCache()), 50, l)
	evaluator := watch.NewEvaluator(watch.NewCooldown(time.Minute), nil)
	cycle := usecase.NewRefreshCycle(usecase.CycleDeps{
		Scorer:     risk.NewScorer(),
		Summarizer: summary.NewChain(l),
		Board:      board,
		Logger:     l,
	}, time.Second, time.Second)

	e := echo.New()
	n := xhttp.Mount(e,
		NewAssessmentsHandler(l, usecase.NewAssessmentsUseCase(board, cycle)),
		NewRulesHandler(l, usecase.NewRulesUseCase(rules, evaluator)),
		NewNotificationsHandler(l, usecase.NewNotificationsUseCase(history), nil),
		NewHealthHandler(board, nil, func() []string { return []string{"websocket"} }),
	)
	require.Positive(t, n)
	return &testAPI{e: e, board: board, history: history}
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestAssessmentsEndpoints(t *testing.T) {
	a := newTestAPI(t)

	rec, env := a.do(t, http.MethodGet, "/api/assessments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list usecase.AssessmentList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Nil(t, list.UpdatedAt)
	assert.Empty(t, list.Assets)

	a.board.Replace([]models.AssetState{{
		Symbol:     "BTC",
		Name:       "Bitcoin",
		Assessment: models.Unavailable("BTC", "no data", time.Now()),
	}}, time.Now())

	rec, env = a.do(t, http.MethodGet, "/api/assessments/btc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"score":null`)
	assert.Contains(t, string(env.Data), `"level":"UNAVAILABLE"`)

	rec, _ = a.do(t, http.MethodGet, "/api/assessments/DOGE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScoreEndpoint(t *testing.T) {
	a := newTestAPI(t)

	body := `{"symbol":"btc",
		"news":{"negativeCount":40,"totalCount":100,"riskTags":["hack"]},
		"social":{"negativeCount":10,"totalCount":50},
		"onChain":{"netflowPercent":25,"activeAddressChange":-25}}`
	rec, env := a.do(t, http.MethodPost, "/api/score", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st models.AssetState
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "BTC", st.Symbol)
	v, ok := st.Assessment.Score.Value()
	require.True(t, ok)
	assert.Equal(t, 58, v)
	assert.Equal(t, models.LevelMedium, st.Assessment.Level)
	assert.NotEmpty(t, st.Assessment.Summary)

	assert.Empty(t, a.board.All(), "scoring does not publish")

	rec, _ = a.do(t, http.MethodPost, "/api/score", `{"news":{"totalCount":1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRulesEndpoints(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing name", `{"scope":"all","conditions":[]}`, http.StatusBadRequest},
		{"unknown operator", `{"name":"x","scope":"all","conditions":[{"type":"price_change","operator":"!=","threshold":1}]}`, http.StatusBadRequest},
		{"tag required", `{"name":"x","scope":"all","conditions":[{"type":"news_risk_tag","operator":"=="}]}`, http.StatusBadRequest},
		{"empty scope", `{"name":"x","scope":[],"conditions":[]}`, http.StatusUnprocessableEntity},
		{"level on numeric", `{"name":"x","scope":"all","conditions":[{"type":"price_change","operator":">","threshold":"HIGH"}]}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := a.do(t, http.MethodPost, "/api/rules", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	rec, env := a.do(t, http.MethodPost, "/api/rules",
		`{"name":"Pump","scope":["btc"],"conditions":[{"type":"price_change","operator":">","threshold":5}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.WatchRule
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.True(t, created.Enabled)
	assert.Equal(t, []string{"BTC"}, created.Scope.Symbols)

	rec, env = a.do(t, http.MethodPatch, "/api/rules/"+created.ID, `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.WatchRule
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.False(t, updated.Enabled)
	assert.Equal(t, "Pump", updated.Name)
	require.Len(t, updated.Conditions, 1)

	rec, _ = a.do(t, http.MethodPatch, "/api/rules/nope", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = a.do(t, http.MethodGet, "/api/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []models.WatchRule
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 1)

	rec, _ = a.do(t, http.MethodDelete, "/api/rules/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = a.do(t, http.MethodDelete, "/api/rules/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationsEndpoints(t *testing.T) {
	a := newTestAPI(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a.history.Append(context.Background(),
		models.Notification{ID: "n1", RuleID: "r1", Symbol: "BTC", TriggeredAt: at},
		models.Notification{ID: "n2", RuleID: "r1", Symbol: "ETH", TriggeredAt: at},
	)

	rec, _ := a.do(t, http.MethodGet, "/api/notifications?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/api/notifications/n1/read", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = a.do(t, http.MethodPost, "/api/notifications/missing/read", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := a.do(t, http.MethodGet, "/api/notifications?unread=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list usecase.NotificationList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "n2", list.Items[0].ID)
	assert.Equal(t, 1, list.Unread)

	rec, env = a.do(t, http.MethodPost, "/api/notifications/read-all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"marked":1}`, string(env.Data))

	rec, _ = a.do(t, http.MethodDelete, "/api/notifications", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, env = a.do(t, http.MethodGet, "/api/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"unread":0}`, string(env.Data))
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	rec, env := a.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","assets":0,"lastRefresh":null,"clients":0,"sinks":["websocket"]}`, string(env.Data))
}

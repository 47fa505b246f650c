package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskWatch/internal/domain/models"
)

func TestScoreSnapshots(t *testing.T) {
	in := `[
	  {"symbol":"btc","news":{"negativeCount":40,"totalCount":100,"riskTags":["hack"]},
	   "social":{"negativeCount":10,"totalCount":50},
	   "onChain":{"netflowPercent":25,"activeAddressChange":-25}},
	  {"symbol":"SOL","onChain":{"netflowPercent":40}}
	]`
	var out bytes.Buffer
	require.NoError(t, scoreSnapshots(context.Background(), strings.NewReader(in), &out))

	var states []models.AssetState
	require.NoError(t, json.Unmarshal(out.Bytes(), &states))
	require.Len(t, states, 2)

	assert.Equal(t, "BTC", states[0].Symbol)
	v, ok := states[0].Assessment.Score.Value()
	require.True(t, ok)
	assert.Equal(t, 58, v)
	assert.Equal(t, models.LevelUnavailable, states[1].Assessment.Level)
}

func TestDecodeSnapshots(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{"single object", `{"symbol":"ETH"}`, 1, false},
		{"array", `[{"symbol":"ETH"},{"symbol":"BTC"}]`, 2, false},
		{"empty", "  ", 0, true},
		{"missing symbol", `{"news":{}}`, 0, true},
		{"garbage", `{"symbol":`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeSnapshots(strings.NewReader(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

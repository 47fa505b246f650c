package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheGetSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "riskwatch")
	ctx := context.Background()

	mock.ExpectSet("riskwatch:watch_rules", []byte(`[]`), 0).SetVal("OK")
	require.NoError(t, c.Set(ctx, "watch_rules", []byte(`[]`), 0))

	mock.ExpectGet("riskwatch:watch_rules").SetVal(`[]`)
	got, err := c.Get(ctx, "watch_rules")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "riskwatch")

	mock.ExpectGet("riskwatch:missing").RedisNil()
	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "")

	mock.ExpectGet("k").SetErr(errors.New("connection refused"))
	_, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

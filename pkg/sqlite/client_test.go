package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientMemory(t *testing.T) {
	c, err := NewClient(MemoryPath)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.InitSchema(ctx, []string{
		`CREATE TABLE IF NOT EXISTS t (k TEXT PRIMARY KEY, v TEXT)`,
		`CREATE TABLE IF NOT EXISTS t (k TEXT PRIMARY KEY, v TEXT)`,
	}))

	_, err = c.DB().ExecContext(ctx, `INSERT INTO t (k, v) VALUES (?, ?)`, "a", "1")
	require.NoError(t, err)

	var v string
	require.NoError(t, c.DB().QueryRowContext(ctx, `SELECT v FROM t WHERE k = ?`, "a").Scan(&v))
	assert.Equal(t, "1", v)
}

func TestNewClientFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "riskwatch.db")
	c, err := NewClient(path)
	require.NoError(t, err)
	assert.NoError(t, c.Close())
	assert.FileExists(t, path)
}

func TestNewClientEmptyPath(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	pkgch "RiskWatch/pkg/clickhouse"
	applogger "RiskWatch/pkg/logger"
	pkgsqlite "RiskWatch/pkg/sqlite"
)

var clickhouseArchiveSchema = []string{
	`CREATE TABLE IF NOT EXISTS assessments (
		symbol      LowCardinality(String),
		computed_at DateTime64(3, 'UTC'),
		score       Nullable(UInt8),
		level       LowCardinality(String),
		news        Float64,
		social      Float64,
		onchain     Float64,
		summary     String
	) ENGINE = MergeTree
	ORDER BY (symbol, computed_at)
	TTL toDateTime(computed_at) + INTERVAL 90 DAY`,
}

var sqliteArchiveSchema = []string{
	`CREATE TABLE IF NOT EXISTS assessments (
		symbol      TEXT NOT NULL,
		computed_at DATETIME NOT NULL,
		score       INTEGER,
		level       TEXT NOT NULL,
		news        REAL NOT NULL DEFAULT 0,
		social      REAL NOT NULL DEFAULT 0,
		onchain     REAL NOT NULL DEFAULT 0,
		summary     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assessments_symbol_time ON assessments (symbol, computed_at)`,
}

const insertAssessment = `INSERT INTO assessments (symbol, computed_at, score, level, news, social, onchain, summary) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// SQLArchive appends cycle results to an assessments table over database/sql.
type SQLArchive struct {
	db     *sql.DB
	schema []string
	name   string
	l      *applogger.Logger
}

// NewClickHouseArchive archives into ClickHouse.
func NewClickHouseArchive(ch *pkgch.Client, l *applogger.Logger) *SQLArchive {
	return &SQLArchive{db: ch.DB(), schema: clickhouseArchiveSchema, name: "clickhouse", l: l}
}

// NewSQLiteArchive archives into the local SQLite file.
func NewSQLiteArchive(c *pkgsqlite.Client, l *applogger.Logger) *SQLArchive {
	return &SQLArchive{db: c.DB(), schema: sqliteArchiveSchema, name: "sqlite", l: l}
}

func (a *SQLArchive) Init(ctx context.Context) error {
	for _, stmt := range a.schema {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s archive schema: %w", a.name, err)
		}
	}
	return nil
}

// StoreBatch inserts the batch in one transaction.
func (a *SQLArchive) StoreBatch(ctx context.Context, batch []models.AssetState) error {
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertAssessment)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range batch {
		as := row.Assessment
		var b models.ScoreBreakdown
		if as.Breakdown != nil {
			b = *as.Breakdown
		}
		if _, err := stmt.ExecContext(ctx, as.Symbol, as.ComputedAt.UTC(), scoreColumn(as.Score), string(as.Level),
			b.News, b.Social, b.OnChain, as.Summary); err != nil {
			_ = tx.Rollback()
			a.l.Error("archive insert failed",
				applogger.String("backend", a.name),
				applogger.String("symbol", as.Symbol),
				applogger.Error(err),
			)
			return fmt.Errorf("insert %s: %w", as.Symbol, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	a.l.Debug("archived assessments",
		applogger.String("backend", a.name),
		applogger.Int("rows", len(batch)),
		applogger.Duration("took_ms", time.Since(start)),
	)
	return nil
}

func (a *SQLArchive) Close() error { return nil }

// scoreColumn maps an unavailable score to NULL.
func scoreColumn(s models.RiskScore) *uint8 {
	v, ok := s.Value()
	if !ok {
		return nil
	}
	u := uint8(v)
	return &u
}

var _ domrepo.AssessmentArchive = (*SQLArchive)(nil)

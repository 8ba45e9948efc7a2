package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

// CacheSourceName labels cache lookups in metrics.
const CacheSourceName = "sqlite_cache"

// settleDays is how long after a session its close is considered final.
const settleDays = 4

const cacheSchema = `
CREATE TABLE IF NOT EXISTS daily_closes (
	ticker TEXT NOT NULL,
	date   TEXT NOT NULL,
	close  REAL NOT NULL,
	PRIMARY KEY (ticker, date)
);
CREATE TABLE IF NOT EXISTS coverage (
	ticker    TEXT NOT NULL,
	from_date TEXT NOT NULL,
	to_date   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_coverage_ticker ON coverage (ticker, from_date, to_date);
`

// CachedSource is a read-through sqlite cache of daily closes in front of an
// upstream source. A range is served locally only when a single stored
// coverage interval contains it.
type CachedSource struct {
	db       *sql.DB
	upstream Source
	observer Observer
	now      func() time.Time
	logger   *slog.Logger
}

// OpenCache opens (creating if needed) the sqlite database at path.
func OpenCache(path string, upstream Source, observer Observer, logger *slog.Logger) (*CachedSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open price cache: %w", err)
	}
	// sqlite allows one writer; serialize instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate price cache: %w", err)
	}

	return &CachedSource{
		db:       db,
		upstream: upstream,
		observer: observer,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "price_cache")),
	}, nil
}

// Close releases the database.
func (c *CachedSource) Close() error {
	return c.db.Close()
}

// Ping checks the database is reachable.
func (c *CachedSource) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Unwrap exposes the upstream source.
func (c *CachedSource) Unwrap() Source { return c.upstream }

// DailyCloses implements dca.PriceSource.
func (c *CachedSource) DailyCloses(ctx context.Context, ticker string, from, to time.Time) ([]dca.PricePoint, error) {
	from, to = dca.Date(from), dca.Date(to)

	covered, err := c.covered(ctx, ticker, from, to)
	if err != nil {
		c.logger.WarnContext(ctx, "cache coverage lookup failed, going upstream",
			slog.String("ticker", ticker), slog.String("error", err.Error()))
	}
	if covered {
		pts, err := c.load(ctx, ticker, from, to)
		if err == nil {
			c.observe(ctx, "hit")
			return pts, nil
		}
		c.logger.WarnContext(ctx, "cache read failed, going upstream",
			slog.String("ticker", ticker), slog.String("error", err.Error()))
	}
	c.observe(ctx, "miss")

	pts, err := c.upstream.DailyCloses(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, ticker, from, to, pts); err != nil {
		c.logger.WarnContext(ctx, "cache write failed",
			slog.String("ticker", ticker), slog.String("error", err.Error()))
	}
	return pts, nil
}

func (c *CachedSource) observe(ctx context.Context, outcome string) {
	if c.observer != nil {
		c.observer(ctx, CacheSourceName, outcome)
	}
}

func (c *CachedSource) covered(ctx context.Context, ticker string, from, to time.Time) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM coverage WHERE ticker = ? AND from_date <= ? AND to_date >= ? LIMIT 1`,
		ticker, from.Format(dca.DateLayout), to.Format(dca.DateLayout)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (c *CachedSource) load(ctx context.Context, ticker string, from, to time.Time) ([]dca.PricePoint, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT date, close FROM daily_closes WHERE ticker = ? AND date BETWEEN ? AND ? ORDER BY date`,
		ticker, from.Format(dca.DateLayout), to.Format(dca.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dca.PricePoint
	for rows.Next() {
		var (
			day   string
			price float64
		)
		if err := rows.Scan(&day, &price); err != nil {
			return nil, err
		}
		d, err := time.Parse(dca.DateLayout, day)
		if err != nil {
			return nil, err
		}
		out = append(out, dca.PricePoint{Date: d, Close: price})
	}
	return out, rows.Err()
}

// store saves points and records coverage for the settled part of the range.
func (c *CachedSource) store(ctx context.Context, ticker string, from, to time.Time, pts []dca.PricePoint) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO daily_closes (ticker, date, close) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pts {
		if _, err := stmt.ExecContext(ctx, ticker, p.Date.Format(dca.DateLayout), p.Close); err != nil {
			return err
		}
	}

	settled := dca.Date(c.now()).AddDate(0, 0, -settleDays)
	if to.After(settled) {
		to = settled
	}
	if !from.After(to) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO coverage (ticker, from_date, to_date) VALUES (?, ?, ?)`,
			ticker, from.Format(dca.DateLayout), to.Format(dca.DateLayout)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

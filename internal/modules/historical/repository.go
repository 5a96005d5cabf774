// Package historical stores daily price history and serves it to the estimators.
package historical

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/riskengine/internal/database"
	"github.com/aristath/riskengine/internal/domain"
	"github.com/rs/zerolog"
)

// Repository provides access to the daily_prices table of history.db.
// It implements domain.PriceProvider.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new price history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// GetPrices returns the daily prices of ticker between start and end inclusive,
// earliest first. A zero start or end leaves that side open.
func (r *Repository) GetPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	startUnix := int64(0)
	if !start.IsZero() {
		startUnix = dayUnix(start)
	}
	endUnix := int64(1<<62 - 1)
	if !end.IsZero() {
		endUnix = dayUnix(end)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT date, open, close
		FROM daily_prices
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, ticker, startUnix, endUnix)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetDailyPrices returns the latest limit prices of ticker, most recent first.
func (r *Repository) GetDailyPrices(ctx context.Context, ticker string, limit int) ([]domain.PricePoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, open, close
		FROM daily_prices
		WHERE ticker = ?
		ORDER BY date DESC
		LIMIT ?
	`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// LatestPrices returns the most recent close of each ticker. Tickers without
// history are reported in the error.
func (r *Repository) LatestPrices(ctx context.Context, tickers []string) ([]float64, error) {
	prices := make([]float64, len(tickers))
	for i, ticker := range tickers {
		err := r.db.QueryRowContext(ctx,
			"SELECT close FROM daily_prices WHERE ticker = ? ORDER BY date DESC LIMIT 1",
			ticker,
		).Scan(&prices[i])
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no price history for %s", ticker)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get latest price for %s: %w", ticker, err)
		}
	}
	return prices, nil
}

// UpsertPrices inserts or replaces the daily prices of ticker.
func (r *Repository) UpsertPrices(ctx context.Context, ticker string, points []domain.PricePoint) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO daily_prices (ticker, date, open, close)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			if _, err := stmt.ExecContext(ctx, ticker, dayUnix(p.Date), p.Open, p.Close); err != nil {
				return fmt.Errorf("failed to insert daily price for %s: %w", p.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().
		Str("ticker", ticker).
		Int("count", len(points)).
		Msg("Stored daily prices")
	return nil
}

// Tickers lists every ticker with price history.
func (r *Repository) Tickers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT ticker FROM daily_prices ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}
	return tickers, nil
}

func scanPrices(rows *sql.Rows) ([]domain.PricePoint, error) {
	var prices []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		var dateUnix int64
		if err := rows.Scan(&dateUnix, &p.Open, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		p.Date = time.Unix(dateUnix, 0).UTC()
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return prices, nil
}

// dayUnix returns the Unix timestamp of midnight UTC on t's calendar day.
func dayUnix(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

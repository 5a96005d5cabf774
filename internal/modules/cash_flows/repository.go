package cash_flows

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/riskengine/internal/database"
	"github.com/aristath/riskengine/internal/domain"
	"github.com/rs/zerolog"
)

// Repository handles payment history persistence in history.db.
// It implements domain.DividendProvider.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new payment history repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "payments").Logger(),
	}
}

// Record inserts or replaces payments for ticker. Dates are stored as Unix
// timestamps at midnight UTC, so at most one payment is kept per day.
func (r *Repository) Record(ctx context.Context, ticker string, payments []domain.Payment) error {
	createdAt := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO payments (ticker, date, amount, created_at)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range payments {
			if _, err := stmt.ExecContext(ctx, ticker, startOfDay(p.Date).Unix(), p.Amount, createdAt); err != nil {
				return fmt.Errorf("failed to insert payment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().
		Str("ticker", ticker).
		Int("count", len(payments)).
		Msg("Recorded payments")
	return nil
}

// GetDividends returns every recorded payment of ticker, earliest first.
func (r *Repository) GetDividends(ctx context.Context, ticker string) ([]domain.Payment, error) {
	return r.GetByDateRange(ctx, ticker, time.Time{}, time.Time{})
}

// GetByDateRange returns the payments of ticker between start and end inclusive,
// earliest first. A zero bound leaves that side open.
func (r *Repository) GetByDateRange(ctx context.Context, ticker string, start, end time.Time) ([]domain.Payment, error) {
	query := "SELECT date, amount FROM payments WHERE ticker = ?"
	args := []interface{}{ticker}
	if !start.IsZero() {
		query += " AND date >= ?"
		args = append(args, startOfDay(start).Unix())
	}
	if !end.IsZero() {
		query += " AND date <= ?"
		args = append(args, startOfDay(end).Unix())
	}
	query += " ORDER BY date ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		var dateUnix int64
		if err := rows.Scan(&dateUnix, &p.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Date = time.Unix(dateUnix, 0).UTC()
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

// Delete removes every payment of ticker and returns the number removed.
func (r *Repository) Delete(ctx context.Context, ticker string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM payments WHERE ticker = ?", ticker)
	if err != nil {
		return 0, fmt.Errorf("failed to delete payments: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

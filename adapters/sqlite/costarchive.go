package sqlite

import (
	"context"
	"time"

	"github.com/artpar/costgate/domain/cost"
	"github.com/artpar/costgate/domain/money"
	"github.com/artpar/costgate/ports"
)

// CostArchive implements ports.CostArchive using SQLite.
type CostArchive struct {
	db *DB
}

// NewCostArchive creates a new SQLite cost archive.
func NewCostArchive(db *DB) *CostArchive {
	return &CostArchive{db: db}
}

// RecordBatch stores multiple cost records.
func (s *CostArchive) RecordBatch(ctx context.Context, records []cost.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cost_records (id, user_id, service, amount_micro, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		// Store timestamp in UTC for consistent querying
		_, err := stmt.ExecContext(ctx,
			rec.ID, rec.UserID, rec.Service, rec.Amount.Micros(), rec.CreatedAt.UTC(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ServiceTotals returns accumulated spend per service for a user.
func (s *CostArchive) ServiceTotals(ctx context.Context, userID string) (map[string]money.Amount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service, COALESCE(SUM(amount_micro), 0)
		FROM cost_records
		WHERE user_id = ?
		GROUP BY service
		ORDER BY service
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]money.Amount)
	for rows.Next() {
		var service string
		var micros int64
		if err := rows.Scan(&service, &micros); err != nil {
			return nil, err
		}
		totals[service] = money.FromMicros(micros)
	}
	return totals, rows.Err()
}

// GlobalTotal returns total spend across all users since a point in time.
func (s *CostArchive) GlobalTotal(ctx context.Context, since time.Time) (money.Amount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_micro), 0)
		FROM cost_records
		WHERE datetime(created_at) >= datetime(?)
	`, since.UTC().Format("2006-01-02 15:04:05"))

	var micros int64
	if err := row.Scan(&micros); err != nil {
		return money.Zero, err
	}
	return money.FromMicros(micros), nil
}

// RecentRecords returns the most recent records for a user, newest first.
func (s *CostArchive) RecentRecords(ctx context.Context, userID string, limit int) ([]cost.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, service, amount_micro, created_at
		FROM cost_records
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []cost.Record
	for rows.Next() {
		var rec cost.Record
		var micros int64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Service, &micros, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Amount = money.FromMicros(micros)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Ensure interface compliance.
var _ ports.CostArchive = (*CostArchive)(nil)

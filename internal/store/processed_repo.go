package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/pkg/models"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// IsProcessed reports whether the (account, messageID) pair has already
// been handled
func (s *Store) IsProcessed(ctx context.Context, account, messageID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM processed_mail WHERE account = ? AND message_id = ?`
	if err := s.GetContext(ctx, &count, query, account, messageID); err != nil {
		return false, fmt.Errorf("failed to check processed mail: %w", err)
	}
	return count > 0, nil
}

// MarkProcessed records the pair as handled. A second call for the same
// key is a silent no-op: the first write wins and is never overwritten.
func (s *Store) MarkProcessed(ctx context.Context, account, messageID, chatTS string) error {
	query := `
		INSERT OR IGNORE INTO processed_mail (account, message_id, chat_ts, processed_at)
		VALUES (?, ?, ?, ?)
	`
	ts := sql.NullString{String: chatTS, Valid: chatTS != ""}
	if _, err := s.ExecContext(ctx, query, account, messageID, ts, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark mail processed: %w", err)
	}
	return nil
}

// GetProcessedMail returns the full record for the pair, or ErrNotFound
func (s *Store) GetProcessedMail(ctx context.Context, account, messageID string) (*models.ProcessedMail, error) {
	var rec models.ProcessedMail
	query := `SELECT * FROM processed_mail WHERE account = ? AND message_id = ?`
	err := s.GetContext(ctx, &rec, query, account, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processed mail: %w", err)
	}
	return &rec, nil
}

// Stats describe the current size of the ledger
type Stats struct {
	Total     int
	ByAccount map[string]int
}

// GetStats returns the total row count and a per-account breakdown
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByAccount: make(map[string]int)}

	if err := s.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM processed_mail`); err != nil {
		return nil, fmt.Errorf("failed to count processed mail: %w", err)
	}

	rows, err := s.QueryxContext(ctx, `SELECT account, COUNT(*) AS n FROM processed_mail GROUP BY account`)
	if err != nil {
		return nil, fmt.Errorf("failed to count per account: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var account string
		var n int
		if err := rows.Scan(&account, &n); err != nil {
			return nil, fmt.Errorf("failed to scan account count: %w", err)
		}
		stats.ByAccount[account] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account counts: %w", err)
	}

	return stats, nil
}

// DeleteOldRecords removes rows whose processed_at is older than the
// retention window and returns how many were deleted
func (s *Store) DeleteOldRecords(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result, err := s.ExecContext(ctx, `DELETE FROM processed_mail WHERE processed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old records: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

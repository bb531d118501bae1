package models

import (
	"database/sql"
	"time"
)

// ProcessedMail is one row of the dedup ledger: a mail message that has
// already been delivered to the chat channel.
type ProcessedMail struct {
	Account     string         `db:"account"`      // Account ID from config
	MessageID   string         `db:"message_id"`   // Gmail message ID
	ChatTS      sql.NullString `db:"chat_ts"`      // Timestamp/ID of the chat post
	ProcessedAt time.Time      `db:"processed_at"` // When the pipeline committed
}

package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"PerpIndexer/internal/event"
)

// ArchiveReader reads the event archive back for operators and the
// query API.
type ArchiveReader struct {
	db *sql.DB
}

func NewArchiveReader(db *sql.DB) *ArchiveReader {
	return &ArchiveReader{db: db}
}

// LoadFrom returns up to limit archived events strictly after the cursor,
// in log order.
func (ar *ArchiveReader) LoadFrom(ctx context.Context, after event.Cursor, limit int) ([]ArchiveRow, error) {
	rows, err := ar.db.QueryContext(ctx, `
		SELECT event_id, event_type, block_number, tx_index, log_index, records
		FROM indexer.event_archive
		WHERE (block_number, tx_index, log_index) > ($1, $2, $3)
		ORDER BY block_number ASC, tx_index ASC, log_index ASC
		LIMIT $4
	`, after.BlockNumber, after.TxIndex, after.LogIndex, limit)
	if err != nil {
		return nil, fmt.Errorf("load archive: %w", err)
	}
	defer rows.Close()

	var out []ArchiveRow
	for rows.Next() {
		var (
			r       ArchiveRow
			records []byte
		)
		if err := rows.Scan(
			&r.EventID, &r.EventType,
			&r.Cursor.BlockNumber, &r.Cursor.TxIndex, &r.Cursor.LogIndex,
			&records,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(records, &r.Records); err != nil {
			return nil, fmt.Errorf("unmarshal archive records %s: %w", r.EventID, err)
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// LatestCursor returns the cursor of the last archived event. ok is false
// for an empty archive.
func (ar *ArchiveReader) LatestCursor(ctx context.Context) (c event.Cursor, ok bool, err error) {
	err = ar.db.QueryRowContext(ctx, `
		SELECT block_number, tx_index, log_index
		FROM indexer.event_archive
		ORDER BY block_number DESC, tx_index DESC, log_index DESC
		LIMIT 1
	`).Scan(&c.BlockNumber, &c.TxIndex, &c.LogIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Cursor{}, false, nil
	}
	if err != nil {
		return event.Cursor{}, false, fmt.Errorf("latest archived cursor: %w", err)
	}
	return c, true, nil
}

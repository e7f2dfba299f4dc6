package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"PerpIndexer/internal/core"
	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
)

// ArchiveRow is one row of indexer.event_archive: the record keys a
// processed log wrote or removed.
type ArchiveRow struct {
	EventID   string       `json:"eventId"`
	EventType string       `json:"eventType"`
	Cursor    event.Cursor `json:"cursor"`
	Records   []RecordRef  `json:"records"`
}

// RecordRef names one record touched by an event.
type RecordRef struct {
	Kind    entity.Kind `json:"kind"`
	ID      string      `json:"id"`
	Removed bool        `json:"removed,omitempty"`
}

// ArchiveRowFrom flattens an engine output into its archive row.
func ArchiveRowFrom(out core.CoreOutput) ArchiveRow {
	refs := make([]RecordRef, 0, len(out.Records)+len(out.Removed))
	for _, rec := range out.Records {
		refs = append(refs, RecordRef{Kind: rec.Kind(), ID: rec.EntityID()})
	}
	for _, rm := range out.Removed {
		refs = append(refs, RecordRef{Kind: rm.Kind, ID: rm.ID, Removed: true})
	}
	return ArchiveRow{
		EventID:   out.EventID,
		EventType: out.EventType.String(),
		Cursor:    out.Cursor,
		Records:   refs,
	}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ArchiveWriter writes archive rows to Postgres using multi-row inserts.
type ArchiveWriter struct {
	db *sql.DB
}

func NewArchiveWriter(db *sql.DB) *ArchiveWriter {
	return &ArchiveWriter{db: db}
}

// WriteBatch inserts rows in one transaction. Rows already archived are
// skipped, so a batch replayed after a crash is harmless.
func (w *ArchiveWriter) WriteBatch(ctx context.Context, rows []ArchiveRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := writeArchiveRows(ctx, tx, rows); err != nil {
		return err
	}
	return tx.Commit()
}

func writeArchiveRows(ctx context.Context, ex execer, rows []ArchiveRow) error {
	query := `INSERT INTO indexer.event_archive
		(event_id, event_type, block_number, tx_index, log_index, records)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*6)

	for i, r := range rows {
		records, err := json.Marshal(r.Records)
		if err != nil {
			return fmt.Errorf("marshal archive records %s: %w", r.EventID, err)
		}
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args,
			r.EventID, r.EventType,
			r.Cursor.BlockNumber, r.Cursor.TxIndex, r.Cursor.LogIndex,
			records,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (event_id) DO NOTHING"

	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert archive batch: %w", err)
	}
	return nil
}

// Package sqlite is the SQLite-backed audit.Trail.
//
// WAL mode is enabled on Open so trail reads never block the recorder
// goroutine writing new transitions.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bakehouse/storefront-go/internal/domain"
	"github.com/bakehouse/storefront-go/internal/tracking/audit"

	// Pure-Go SQLite driver; no CGO needed.
	_ "modernc.org/sqlite"
)

// The table is append-only: one immutable row per observed transition.
// Timestamps are RFC3339 TEXT, the SQLite idiom.
const schema = `
CREATE TABLE IF NOT EXISTS order_status_audit (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id    INTEGER     NOT NULL,
    old_status  TEXT        NOT NULL DEFAULT '',
    new_status  TEXT        NOT NULL,
    actor       TEXT        NOT NULL DEFAULT '',
    note        TEXT        NOT NULL DEFAULT '',
    trace_id    TEXT        NOT NULL DEFAULT '',
    span_id     TEXT        NOT NULL DEFAULT '',
    recorded_at TEXT        NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_status_audit_order
    ON order_status_audit(order_id, recorded_at);

CREATE INDEX IF NOT EXISTS idx_order_status_audit_trace
    ON order_status_audit(trace_id);
`

// Trail is the SQLite implementation of audit.Trail.
type Trail struct {
	db *sql.DB
}

var _ audit.Trail = (*Trail)(nil)

// Open opens (or creates) the audit database at path and applies the schema.
func Open(path string) (*Trail, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit sqlite: open %q: %w", path, err)
	}
	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit sqlite: apply schema: %w", err)
	}
	return &Trail{db: db}, nil
}

func (t *Trail) Close() error { return t.db.Close() }

// Append inserts one audit row. Safe for concurrent use.
func (t *Trail) Append(ctx context.Context, e *audit.Entry) error {
	const q = `
		INSERT INTO order_status_audit
			(order_id, old_status, new_status, actor, note, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.db.ExecContext(ctx, q,
		e.OrderID,
		string(e.OldStatus),
		string(e.NewStatus),
		string(e.Actor),
		e.Note,
		e.TraceID,
		e.SpanID,
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("audit sqlite: append for order %d: %w", e.OrderID, err)
	}
	return nil
}

// History returns every recorded transition for the order, oldest first.
func (t *Trail) History(ctx context.Context, orderID int64) ([]audit.Entry, error) {
	const q = `
		SELECT order_id, old_status, new_status, actor, note, trace_id, span_id, recorded_at
		FROM   order_status_audit
		WHERE  order_id = ?
		ORDER  BY recorded_at ASC, id ASC`

	rows, err := t.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("audit sqlite: history for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var oldStatus, newStatus, actor, recordedAt string
		if err := rows.Scan(&e.OrderID, &oldStatus, &newStatus, &actor, &e.Note, &e.TraceID, &e.SpanID, &recordedAt); err != nil {
			return nil, fmt.Errorf("audit sqlite: scan: %w", err)
		}
		e.OldStatus = domain.Status(oldStatus)
		e.NewStatus = domain.Status(newStatus)
		e.Actor = domain.Actor(actor)
		e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("audit sqlite: parse time %q: %w", recordedAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

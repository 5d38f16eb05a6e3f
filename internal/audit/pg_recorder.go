package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgRecorder appends events to the event_logs table.
type PgRecorder struct {
	pool execer
}

// NewPgRecorder accepts a *pgxpool.Pool or anything else that can Exec.
func NewPgRecorder(pool execer) *PgRecorder {
	if pool == nil {
		panic("audit: pgx pool required")
	}
	return &PgRecorder{pool: pool}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS event_logs (
	id             BIGSERIAL PRIMARY KEY,
	event_type     TEXT        NOT NULL,
	appointment_id TEXT,
	actor          TEXT,
	payload        JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func (r *PgRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create event_logs: %w", err)
	}
	return nil
}

func (r *PgRecorder) Record(ctx context.Context, ev Event) error {
	var data []byte
	if ev.Payload != nil {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload for %s: %w", ev.Type, err)
		}
		data = b
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.Type, nullableString(ev.AppointmentID), nullableString(ev.Actor), data, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
)

// Event is one user action that reached the backend successfully.
type Event struct {
	Type          string
	AppointmentID string
	Actor         string
	Payload       map[string]any
	CreatedAt     time.Time
}

type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Event) error { return nil }

// Nop discards every event.
func Nop() Recorder { return nopRecorder{} }

// Log records ev and only logs a failure; the user action has already succeeded.
func Log(ctx context.Context, r Recorder, logger zerolog.Logger, ev Event) {
	if r == nil {
		return
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	if err := r.Record(ctx, ev); err != nil {
		logger.Warn().Err(err).
			Str("event_type", ev.Type).
			Str("appointment_id", ev.AppointmentID).
			Msg("failed to record audit event")
	}
}

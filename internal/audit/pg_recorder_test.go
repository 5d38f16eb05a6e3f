package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgRecorderRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := NewPgRecorder(mock)

	id := "appt-1"
	actor := "42"
	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventAppointmentCreated, &id, &actor, []byte(`{"date":"2025-03-10","timeSlot":"09:00"}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = rec.Record(context.Background(), Event{
		Type:          EventAppointmentCreated,
		AppointmentID: id,
		Actor:         actor,
		Payload:       map[string]any{"timeSlot": "09:00", "date": "2025-03-10"},
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRecorderRecordError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO event_logs").WillReturnError(errors.New("connection reset"))

	err = NewPgRecorder(mock).Record(context.Background(), Event{Type: EventAppointmentCancelled})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert event log")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRecorderEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS event_logs").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, NewPgRecorder(mock).EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Record(context.Context, Event) error {
	f.calls++
	return errors.New("down")
}

func TestLogSwallowsFailures(t *testing.T) {
	rec := &failingRecorder{}
	Log(context.Background(), rec, zerolog.Nop(), Event{Type: EventAppointmentRescheduled})
	assert.Equal(t, 1, rec.calls)

	Log(context.Background(), nil, zerolog.Nop(), Event{})
	assert.NoError(t, Nop().Record(context.Background(), Event{}))
}

package appointment

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidAppointment  = errors.New("invalid appointment data")
	ErrTerminalStatus      = errors.New("appointment can no longer be changed")
	ErrNoReport            = errors.New("appointment has no medical report")
)

// Gateway contains every backend interaction the booking form and the list need.
type Gateway interface {
	FetchDirectory(ctx context.Context) (StaffDirectory, error)

	// Availability
	FetchLeaveDates(ctx context.Context, doctor string) ([]Date, error)
	FetchTakenSlots(ctx context.Context, doctor string, date Date) ([]string, error)

	FetchAppointments(ctx context.Context, req PageRequest) (Page, error)

	// Commands
	CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, req RescheduleRequest) (*Appointment, error)
	CancelAppointment(ctx context.Context, id string) error
}

// MessageOf returns the backend supplied message carried by err, or fallback.
func MessageOf(err error, fallback string) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		if msg := strings.TrimSpace(um.UserMessage()); msg != "" {
			return msg
		}
	}
	return fallback
}

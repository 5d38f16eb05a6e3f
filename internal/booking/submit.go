package booking

import (
	"context"
	"strings"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/audit"
)

type submission struct {
	create     *appointment.CreateRequest
	reschedule *appointment.RescheduleRequest
	lockKey    string
	fallback   string
}

// Submit validates the form and sends it. On success the form closes and the done
// callback runs; on failure the form stays open with ErrorMessage set.
func (c *Controller) Submit(ctx context.Context) (result *appointment.Appointment, err error) {
	call, err := c.beginSubmit()
	if err != nil {
		return nil, err
	}
	defer c.finishSubmit(ctx, call, &result, &err)

	return c.send(ctx, call)
}

func (c *Controller) beginSubmit() (submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return submission{}, ErrClosed
	}
	if c.submitting {
		return submission{}, ErrSubmitInFlight
	}
	c.errMsg = ""

	if c.mode == ModeReschedule && (c.original == nil || strings.TrimSpace(c.original.ID) == "") {
		c.errMsg = MsgInvalidAppointment
		return submission{}, appointment.ErrInvalidAppointment
	}

	if errs := c.validateLocked(); len(errs) > 0 {
		for _, f := range c.schema {
			c.touched[f.Name] = true
		}
		c.errMsg = MsgFillRequired
		return submission{}, &ValidationError{Fields: errs}
	}

	var call submission
	if c.mode == ModeReschedule {
		date, _ := appointment.ParseDate(c.values[FieldDate])
		call = submission{
			reschedule: &appointment.RescheduleRequest{
				ID:       c.original.ID,
				Date:     date,
				TimeSlot: normalizeSlot(c.values[FieldTimeSlot]),
			},
			lockKey:  "appointment:" + c.original.ID,
			fallback: MsgRescheduleFailed,
		}
	} else {
		fields := make(map[string]string, len(c.schema))
		for _, f := range c.schema {
			v := c.values[f.Name]
			if f.Name == FieldTimeSlot {
				v = normalizeSlot(v)
			}
			fields[f.Name] = v
		}
		call = submission{
			create:   &appointment.CreateRequest{Role: string(c.sess.Role), Fields: fields},
			lockKey:  "booking:" + c.doctorLocked() + ":" + fields[FieldDate] + ":" + fields[FieldTimeSlot],
			fallback: MsgBookingFailed,
		}
	}

	c.submitting = true
	return call, nil
}

func (c *Controller) send(ctx context.Context, call submission) (*appointment.Appointment, error) {
	if c.locker == nil {
		return c.invoke(ctx, call)
	}
	var out *appointment.Appointment
	err := c.locker.WithLock(ctx, call.lockKey, func(lockCtx context.Context) error {
		var err error
		out, err = c.invoke(lockCtx, call)
		return err
	})
	return out, err
}

func (c *Controller) invoke(ctx context.Context, call submission) (*appointment.Appointment, error) {
	if call.reschedule != nil {
		return c.gw.RescheduleAppointment(ctx, *call.reschedule)
	}
	return c.gw.CreateAppointment(ctx, *call.create)
}

// finishSubmit always clears the submitting flag, whatever send did.
func (c *Controller) finishSubmit(ctx context.Context, call submission, result **appointment.Appointment, err *error) {
	c.mu.Lock()
	c.submitting = false
	if *err != nil {
		c.errMsg = appointment.MessageOf(*err, call.fallback)
		c.mu.Unlock()
		c.log.Warn().Err(*err).Str("message", c.ErrorMessage()).Msg("appointment submission failed")
		return
	}
	c.closed = true
	c.result = *result
	onDone := c.onDone
	c.mu.Unlock()

	ev := audit.Event{Actor: c.sess.UserID}
	if call.reschedule != nil {
		ev.Type = audit.EventAppointmentRescheduled
		ev.AppointmentID = call.reschedule.ID
		ev.Payload = map[string]any{"date": call.reschedule.Date.String(), "timeSlot": call.reschedule.TimeSlot}
	} else {
		ev.Type = audit.EventAppointmentCreated
		payload := make(map[string]any, len(call.create.Fields)+1)
		for k, v := range call.create.Fields {
			payload[k] = v
		}
		payload[fieldRole] = call.create.Role
		ev.Payload = payload
		if *result != nil {
			ev.AppointmentID = (*result).ID
		}
	}
	audit.Log(ctx, c.recorder, c.log, ev)

	c.log.Info().Str("event", ev.Type).Str("appointment_id", ev.AppointmentID).Msg("appointment submitted")
	if onDone != nil {
		onDone(ctx, *result)
	}
}

// Close ends the session without submitting. The done callback still runs so the
// caller can refresh.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.submitting {
		c.mu.Unlock()
		return
	}
	c.closed = true
	onDone := c.onDone
	c.mu.Unlock()

	if onDone != nil {
		onDone(ctx, nil)
	}
}

func (c *Controller) validateLocked() map[string][]string {
	errs := map[string][]string{}
	for _, f := range c.schema {
		if msgs := validateField(f, c.values[f.Name], c.hours); len(msgs) > 0 {
			errs[f.Name] = msgs
		}
	}
	return errs
}

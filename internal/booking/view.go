package booking

import (
	"github.com/hackgods/clinic-booking/internal/appointment"
)

// Field is the rendered form of one FieldSpec.
type Field struct {
	FieldSpec
	Value    string
	Options  []string
	Disabled bool
	Touched  bool
	// Errors is only filled once the field has been touched.
	Errors []string
}

// Fields renders exactly the schema of the session's role, in order.
func (c *Controller) Fields() []Field {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Field, 0, len(c.schema))
	for _, spec := range c.schema {
		f := Field{
			FieldSpec: spec,
			Value:     c.values[spec.Name],
			Disabled:  c.disabledLocked(spec.Name),
			Touched:   c.touched[spec.Name],
		}
		if spec.Kind == KindSelect {
			f.Options = append([]string(nil), c.options[spec.Name]...)
		}
		if f.Touched {
			f.Errors = validateField(spec, f.Value, c.hours)
		}
		out = append(out, f)
	}
	return out
}

// Slots recomputes every slot's availability from the current date and taken set.
// Until the taken slots of the date have loaded no slot is available.
func (c *Controller) Slots() []SlotOption {
	c.mu.Lock()
	defer c.mu.Unlock()

	dateSet := c.values[FieldDate] != ""
	var out []SlotOption
	for slot := range Slots(c.hours.Opening, c.hours.Closing) {
		out = append(out, SlotOption{
			TimeSlot:  slot,
			Available: dateSet && c.taken != nil && !c.takenLocked(slot.Value),
		})
	}
	return out
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return StateClosed
	case c.submitting:
		return StateSubmitting
	case len(c.validateLocked()) == 0:
		return StateReadyToSubmit
	}
	return c.stage
}

func (c *Controller) Values() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

func (c *Controller) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

func (c *Controller) LeaveDates() []appointment.Date {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]appointment.Date(nil), c.leave...)
}

// Result is the appointment returned by a successful submission.
func (c *Controller) Result() *appointment.Appointment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

func (c *Controller) Mode() Mode     { return c.mode }
func (c *Controller) Schema() Schema { return append(Schema(nil), c.schema...) }

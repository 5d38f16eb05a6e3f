package booking

import (
	"fmt"
	"iter"
	"strings"
	"time"
)

const SlotLength = 30 * time.Minute

// TimeSlot is one bookable start time on the half-hour grid.
type TimeSlot struct {
	Value string // 24-hour "HH:MM"
	Label string // "9:00 AM"
	Start time.Duration
}

// SlotOption is a slot plus its availability for the current doctor and date.
type SlotOption struct {
	TimeSlot
	Available bool
}

func newSlot(offset time.Duration) TimeSlot {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)

	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}

	return TimeSlot{
		Value: fmt.Sprintf("%02d:%02d", h, m),
		Label: fmt.Sprintf("%d:%02d %s", h12, m, suffix),
		Start: offset,
	}
}

// Slots yields 2*(closing-opening) slots from the opening hour up to the last slot
// starting half an hour before closing. Every range over the sequence starts again
// from the opening hour.
func Slots(opening, closing int) iter.Seq[TimeSlot] {
	return func(yield func(TimeSlot) bool) {
		end := time.Duration(closing) * time.Hour
		for at := time.Duration(opening) * time.Hour; at < end; at += SlotLength {
			if !yield(newSlot(at)) {
				return
			}
		}
	}
}

// ParseSlot turns "09:00", "09:00:00" or "9:00 AM" into the machine value "09:00".
func ParseSlot(s string) (string, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "03:04 PM"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("invalid time slot %q", s)
}

// SlotLabel renders a stored slot value as "9:00 AM". Unparseable values come back
// unchanged.
func SlotLabel(value string) string {
	v, err := ParseSlot(value)
	if err != nil {
		return value
	}
	t, _ := time.Parse("15:04", v)
	return newSlot(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute).Label
}

// onGrid reports whether value is a slot produced by Slots(opening, closing).
func onGrid(value string, opening, closing int) bool {
	for slot := range Slots(opening, closing) {
		if slot.Value == value {
			return true
		}
	}
	return false
}

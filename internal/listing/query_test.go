package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

func TestApplyStableStatusSort(t *testing.T) {
	items := []appointment.Appointment{
		{ID: "1", Status: appointment.StatusCancelled},
		{ID: "2", Status: appointment.StatusPending},
		{ID: "3", Status: appointment.StatusConfirmed},
		{ID: "4", Status: appointment.StatusPending},
		{ID: "5", Status: appointment.StatusCompleted},
	}
	q := DefaultQuery(10)
	q.Sort = appointment.SortByStatus

	ids := func(list []appointment.Appointment) []string {
		var out []string
		for _, a := range list {
			out = append(out, a.ID)
		}
		return out
	}
	assert.Equal(t, []string{"2", "4", "3", "5", "1"}, ids(Apply(items, q)))

	q.Direction = appointment.SortDesc
	assert.Equal(t, []string{"1", "5", "3", "2", "4"}, ids(Apply(items, q)))
	assert.Equal(t, "1", items[0].ID, "input untouched")
}

func TestApplyDateRangeInclusive(t *testing.T) {
	var items []appointment.Appointment
	for d := 1; d <= 5; d++ {
		items = append(items, appointment.Appointment{ID: string(rune('0' + d)), Date: appointment.NewDate(2025, time.March, d)})
	}
	q := DefaultQuery(10)
	q.From = appointment.NewDate(2025, time.March, 2)
	q.To = appointment.NewDate(2025, time.March, 4)
	assert.Len(t, Apply(items, q), 3)

	q.To = appointment.Date{}
	assert.Len(t, Apply(items, q), 4)
}

func TestApplyDateSortUsesSlot(t *testing.T) {
	day := appointment.NewDate(2025, time.March, 10)
	items := []appointment.Appointment{
		{ID: "late", Date: day, TimeSlot: "15:00"},
		{ID: "early", Date: day, TimeSlot: "09:30"},
		{ID: "prev", Date: appointment.NewDate(2025, time.March, 9), TimeSlot: "16:00"},
	}
	got := Apply(items, DefaultQuery(10))
	assert.Equal(t, "prev", got[0].ID)
	assert.Equal(t, "early", got[1].ID)
	assert.Equal(t, "late", got[2].ID)
}

func TestPageRequest(t *testing.T) {
	q := DefaultQuery(0)
	assert.Equal(t, DefaultPageSize, q.Size)
	q.Page = 3
	q.Search = " lee "
	req := q.PageRequest()
	assert.Equal(t, 2, req.Page)
	assert.Equal(t, "lee", req.Search)
	assert.Equal(t, appointment.SortByDate, req.Sort)
}

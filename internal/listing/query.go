package listing

import (
	"slices"
	"strings"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

// Query is the list state the user controls. Page is 1-based.
type Query struct {
	Page      int
	Size      int
	Search    string
	Status    appointment.AppointmentStatus
	From      appointment.Date
	To        appointment.Date
	Sort      appointment.SortKey
	Direction appointment.SortDirection
}

const DefaultPageSize = 5

func DefaultQuery(size int) Query {
	if size < 1 {
		size = DefaultPageSize
	}
	return Query{
		Page:      1,
		Size:      size,
		Sort:      appointment.SortByDate,
		Direction: appointment.SortAsc,
	}
}

// PageRequest converts to the gateway's zero-based page request. The filters travel
// with it so a backend that supports them filters across pages.
func (q Query) PageRequest() appointment.PageRequest {
	page := q.Page - 1
	if page < 0 {
		page = 0
	}
	return appointment.PageRequest{
		Page:      page,
		Size:      q.Size,
		Direction: q.Direction,
		Sort:      q.Sort,
		Search:    strings.TrimSpace(q.Search),
		Status:    q.Status,
		From:      q.From,
		To:        q.To,
	}
}

func (q Query) validate() error {
	switch {
	case q.Page < 1:
		return ErrInvalidPage
	case q.Size < 1:
		return ErrInvalidPageSize
	case !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To.Time):
		return ErrInvalidRange
	}
	return nil
}

func (q Query) matches(a appointment.Appointment) bool {
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		found := false
		for _, f := range []string{a.PatientName, a.DoctorName, a.DepartmentName, a.BranchName, a.Reason} {
			if strings.Contains(strings.ToLower(f), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Status != "" && a.Status != q.Status {
		return false
	}
	if !q.From.IsZero() && a.Date.Before(q.From.Time) {
		return false
	}
	if !q.To.IsZero() && a.Date.After(q.To.Time) {
		return false
	}
	return true
}

// Apply filters items by search term, status and inclusive date range, then sorts
// them stably by the query's key and direction. items is not modified.
func Apply(items []appointment.Appointment, q Query) []appointment.Appointment {
	out := make([]appointment.Appointment, 0, len(items))
	for _, a := range items {
		if q.matches(a) {
			out = append(out, a)
		}
	}

	cmp := func(a, b appointment.Appointment) int {
		if q.Sort == appointment.SortByStatus {
			return a.Status.Compare(b.Status)
		}
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		return strings.Compare(a.TimeSlot, b.TimeSlot)
	}
	if q.Direction == appointment.SortDesc {
		asc := cmp
		cmp = func(a, b appointment.Appointment) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, cmp)
	return out
}

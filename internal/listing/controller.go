package listing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/audit"
	"github.com/hackgods/clinic-booking/internal/booking"
	"github.com/hackgods/clinic-booking/internal/notify"
	"github.com/hackgods/clinic-booking/internal/session"
)

var (
	ErrSuperseded      = errors.New("load superseded by a newer query")
	ErrCancelInFlight  = errors.New("cancellation already in progress")
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be at least 1")
	ErrInvalidRange    = errors.New("from date is after to date")
)

const (
	MsgLoadFailed        = "Failed to load appointments"
	MsgCancelFailed      = "Cancellation failed"
	MsgCancelled         = "Appointment cancelled"
	MsgBooked            = "Appointment booked"
	MsgRescheduled       = "Appointment rescheduled"
	MsgCannotCancel      = "Only pending or confirmed appointments can be cancelled"
	MsgCannotReschedule  = "Only pending or confirmed appointments can be rescheduled"
	MsgNoReport          = "No medical report for this appointment"
	MsgFormFailedToStart = "Could not open the booking form"
)

type Option func(*Controller)

func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

func WithRecorder(r audit.Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithPageSize(n int) Option {
	return func(c *Controller) { c.query = DefaultQuery(n) }
}

// WithFormOptions passes options through to every booking form the list opens.
func WithFormOptions(opts ...booking.Option) Option {
	return func(c *Controller) { c.formOpts = append(c.formOpts, opts...) }
}

// Controller holds one fetched page and the locally filtered view of it.
type Controller struct {
	gw       appointment.Gateway
	sess     session.Context
	notifier notify.Notifier
	recorder audit.Recorder
	log      zerolog.Logger
	formOpts []booking.Option

	mu         sync.Mutex
	query      Query
	items      []appointment.Appointment
	visible    []appointment.Appointment
	total      int
	loading    bool
	loadSeq    uint64
	cancelling map[string]bool
}

func New(gw appointment.Gateway, sess session.Context, opts ...Option) *Controller {
	c := &Controller{
		gw:         gw,
		sess:       sess,
		notifier:   &notify.Collector{},
		recorder:   audit.Nop(),
		log:        zerolog.Nop(),
		query:      DefaultQuery(DefaultPageSize),
		cancelling: map[string]bool{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches the page for the current query. On failure the previous data stays
// visible and a retryable error is notified. Only the newest load is applied.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loadSeq++
	seq := c.loadSeq
	q := c.query
	c.loading = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if seq == c.loadSeq {
			c.loading = false
		}
		c.mu.Unlock()
	}()

	page, err := c.gw.FetchAppointments(ctx, q.PageRequest())

	c.mu.Lock()
	if seq != c.loadSeq {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		c.mu.Unlock()
		c.log.Warn().Err(err).Int("page", q.Page).Msg("appointment list load failed")
		notify.Error(ctx, c.notifier, appointment.MessageOf(err, MsgLoadFailed), true)
		return fmt.Errorf("load appointments: %w", err)
	}
	c.items = page.Items
	c.total = page.TotalCount
	c.visible = Apply(c.items, c.query)
	c.mu.Unlock()

	c.log.Debug().Int("page", q.Page).Int("items", len(page.Items)).Int("total", page.TotalCount).Msg("appointments loaded")
	return nil
}

// ApplyFilters re-derives the visible set from the fetched page without a backend call.
func (c *Controller) ApplyFilters() []appointment.Appointment {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = Apply(c.items, c.query)
	return append([]appointment.Appointment(nil), c.visible...)
}

func (c *Controller) update(ctx context.Context, fn func(q *Query) error) error {
	c.mu.Lock()
	q := c.query
	if err := fn(&q); err != nil {
		c.mu.Unlock()
		return err
	}
	c.query = q
	c.visible = Apply(c.items, q)
	c.mu.Unlock()
	return c.Load(ctx)
}

func (c *Controller) OnPageChange(ctx context.Context, page int) error {
	return c.update(ctx, func(q *Query) error {
		if page < 1 {
			return ErrInvalidPage
		}
		q.Page = page
		return nil
	})
}

// SortBy sorts by key; picking the current key again flips the direction.
func (c *Controller) SortBy(ctx context.Context, key appointment.SortKey) error {
	return c.update(ctx, func(q *Query) error {
		if q.Sort == key {
			if q.Direction == appointment.SortAsc {
				q.Direction = appointment.SortDesc
			} else {
				q.Direction = appointment.SortAsc
			}
			return nil
		}
		q.Sort = key
		q.Direction = appointment.SortAsc
		return nil
	})
}

func (c *Controller) Search(ctx context.Context, term string) error {
	return c.update(ctx, func(q *Query) error {
		q.Search = term
		q.Page = 1
		return nil
	})
}

// FilterStatus narrows the list to one status; the empty status shows all.
func (c *Controller) FilterStatus(ctx context.Context, status appointment.AppointmentStatus) error {
	return c.update(ctx, func(q *Query) error {
		q.Status = status
		q.Page = 1
		return nil
	})
}

// FilterDates keeps appointments between from and to inclusive. A zero bound is open.
func (c *Controller) FilterDates(ctx context.Context, from, to appointment.Date) error {
	return c.update(ctx, func(q *Query) error {
		if !from.IsZero() && !to.IsZero() && from.After(to.Time) {
			return ErrInvalidRange
		}
		q.From, q.To = from, to
		q.Page = 1
		return nil
	})
}

func (c *Controller) SetPageSize(ctx context.Context, size int) error {
	return c.update(ctx, func(q *Query) error {
		if size < 1 {
			return ErrInvalidPageSize
		}
		q.Size = size
		q.Page = 1
		return nil
	})
}

// SetQuery replaces the whole query and loads it once. Blank sort and direction
// fall back to date ascending.
func (c *Controller) SetQuery(ctx context.Context, next Query) error {
	return c.update(ctx, func(q *Query) error {
		if next.Sort == "" {
			next.Sort = appointment.SortByDate
		}
		if next.Direction == "" {
			next.Direction = appointment.SortAsc
		}
		if err := next.validate(); err != nil {
			return err
		}
		*q = next
		return nil
	})
}

// Cancel cancels appt and reloads the page. Terminal appointments are refused
// without a backend call.
func (c *Controller) Cancel(ctx context.Context, appt appointment.Appointment) error {
	if !appt.Status.CanCancel() {
		notify.Error(ctx, c.notifier, MsgCannotCancel, false)
		return fmt.Errorf("cancel %s: %w", appt.ID, appointment.ErrTerminalStatus)
	}

	c.mu.Lock()
	if c.cancelling[appt.ID] {
		c.mu.Unlock()
		return ErrCancelInFlight
	}
	c.cancelling[appt.ID] = true
	c.mu.Unlock()

	err := c.gw.CancelAppointment(ctx, appt.ID)

	c.mu.Lock()
	delete(c.cancelling, appt.ID)
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Str("appointment_id", appt.ID).Msg("cancel failed")
		notify.Error(ctx, c.notifier, appointment.MessageOf(err, MsgCancelFailed), false)
		return fmt.Errorf("cancel %s: %w", appt.ID, err)
	}

	audit.Log(ctx, c.recorder, c.log, audit.Event{
		Type:          audit.EventAppointmentCancelled,
		AppointmentID: appt.ID,
		Actor:         c.sess.UserID,
	})
	notify.Success(ctx, c.notifier, MsgCancelled)
	// the cancel went through; a failed reload is already notified
	_ = c.Load(ctx)
	return nil
}

// Reschedule opens a started reschedule form for appt. Completing or closing the
// form reloads the list.
func (c *Controller) Reschedule(ctx context.Context, appt appointment.Appointment) (*booking.Controller, error) {
	if !appt.Status.CanReschedule() {
		notify.Error(ctx, c.notifier, MsgCannotReschedule, false)
		return nil, fmt.Errorf("reschedule %s: %w", appt.ID, appointment.ErrTerminalStatus)
	}
	form, err := booking.NewReschedule(c.gw, c.sess, &appt, c.formOptions(MsgRescheduled)...)
	if err != nil {
		return nil, err
	}
	return c.startForm(ctx, form)
}

// CreateNew opens a started create form for the session's role.
func (c *Controller) CreateNew(ctx context.Context) (*booking.Controller, error) {
	form, err := booking.New(c.gw, c.sess, c.formOptions(MsgBooked)...)
	if err != nil {
		return nil, err
	}
	return c.startForm(ctx, form)
}

func (c *Controller) formOptions(successMsg string) []booking.Option {
	opts := append([]booking.Option{booking.WithLogger(c.log), booking.WithRecorder(c.recorder)}, c.formOpts...)
	return append(opts, booking.OnDone(func(ctx context.Context, result *appointment.Appointment) {
		if result != nil {
			notify.Success(ctx, c.notifier, successMsg)
		}
		_ = c.Load(ctx)
	}))
}

func (c *Controller) startForm(ctx context.Context, form *booking.Controller) (*booking.Controller, error) {
	if err := form.Start(ctx); err != nil {
		notify.Error(ctx, c.notifier, appointment.MessageOf(err, MsgFormFailedToStart), true)
		return form, fmt.Errorf("start booking form: %w", err)
	}
	return form, nil
}

// Report returns the medical report attached to appt.
func (c *Controller) Report(ctx context.Context, appt appointment.Appointment) (*appointment.MedicalReport, error) {
	if appt.MedicalReport == nil {
		notify.Error(ctx, c.notifier, MsgNoReport, false)
		return nil, fmt.Errorf("report for %s: %w", appt.ID, appointment.ErrNoReport)
	}
	r := *appt.MedicalReport
	return &r, nil
}

// CalculateFirstItemIndex is the 1-based position of the first row on the page, or
// 0 when the list is empty.
func (c *Controller) CalculateFirstItemIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.total == 0 {
		return 0
	}
	return (c.query.Page-1)*c.query.Size + 1
}

func (c *Controller) CalculateLastItemIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return min(c.query.Page*c.query.Size, c.total)
}

func (c *Controller) Visible() []appointment.Appointment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]appointment.Appointment(nil), c.visible...)
}

func (c *Controller) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

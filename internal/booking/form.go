package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/audit"
	"github.com/hackgods/clinic-booking/internal/session"
)

var (
	ErrUnsupportedRole    = errors.New("role has no booking form")
	ErrUnknownField       = errors.New("field is not part of this form")
	ErrFieldDisabled      = errors.New("field is disabled")
	ErrUnknownOption      = errors.New("value is not one of the field options")
	ErrInvalidDate        = errors.New("invalid date")
	ErrDateUnavailable    = errors.New("doctor is unavailable on that date")
	ErrSlotUnavailable    = errors.New("time slot is not available")
	ErrSubmitInFlight     = errors.New("submission already in progress")
	ErrSuperseded         = errors.New("result superseded by a newer selection")
	ErrClosed             = errors.New("form is closed")
	ErrDirectoryNotLoaded = errors.New("staff directory not loaded")
)

// User facing messages.
const (
	MsgFillRequired       = "Please fill all required fields"
	MsgInvalidAppointment = "Invalid appointment data"
	MsgBookingFailed      = "Booking failed"
	MsgRescheduleFailed   = "Rescheduling failed"
	MsgDirectoryFailed    = "Could not load branches and doctors"
	MsgAvailabilityFailed = "Could not load doctor availability"
	MsgDateUnavailable    = "The doctor is unavailable on the selected date"
)

// ValidationError lists the messages of every invalid field.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for n := range e.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return "invalid fields: " + strings.Join(names, ", ")
}

func (e *ValidationError) UserMessage() string { return MsgFillRequired }

type State int

const (
	StateEmpty State = iota
	StateDirectoryLoaded
	StateBranchSelected
	StateDepartmentSelected
	StateDoctorSelected
	StateDateSelected
	StateReadyToSubmit
	StateSubmitting
	StateClosed
)

var stateNames = [...]string{
	"empty", "directory_loaded", "branch_selected", "department_selected",
	"doctor_selected", "date_selected", "ready_to_submit", "submitting", "closed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Mode int

const (
	ModeCreate Mode = iota
	ModeReschedule
)

// Locker guards one submission across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// DoneFunc runs once the form closes. result is nil when the form was closed
// without a successful submission.
type DoneFunc func(ctx context.Context, result *appointment.Appointment)

type Option func(*Controller)

func WithHours(opening, closing int) Option {
	return func(c *Controller) { c.hours = Hours{Opening: opening, Closing: closing} }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

func WithLocker(l Locker) Option {
	return func(c *Controller) { c.locker = l }
}

func WithRecorder(r audit.Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func OnDone(fn DoneFunc) Option {
	return func(c *Controller) { c.onDone = fn }
}

// cascade is the dependency order of the form; each field resets everything after it.
var cascade = []string{FieldBranch, FieldDepartment, FieldDoctor, FieldDate, FieldTimeSlot}

// Controller drives one create or reschedule session. It is safe for concurrent use;
// the mutex is never held across a gateway call.
type Controller struct {
	gw       appointment.Gateway
	sess     session.Context
	schema   Schema
	mode     Mode
	original *appointment.Appointment
	hours    Hours
	log      zerolog.Logger
	locker   Locker
	recorder audit.Recorder
	onDone   DoneFunc

	mu          sync.Mutex
	stage       State
	directory   appointment.StaffDirectory
	values      map[string]string
	touched     map[string]bool
	options     map[string][]string
	leave       []appointment.Date
	leaveLoaded bool
	taken       map[string]bool
	doctorSeq   uint64
	dateSeq     uint64
	submitting  bool
	closed      bool
	errMsg      string
	result      *appointment.Appointment
}

func newController(gw appointment.Gateway, sess session.Context, mode Mode, opts []Option) (*Controller, error) {
	schema, err := SchemaFor(sess.Role)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		gw:       gw,
		sess:     sess,
		schema:   schema,
		mode:     mode,
		hours:    Hours{Opening: 9, Closing: 17},
		log:      zerolog.Nop(),
		recorder: audit.Nop(),
		values:   map[string]string{},
		touched:  map[string]bool{},
		options:  map[string][]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// New starts an empty create form for the session's role.
func New(gw appointment.Gateway, sess session.Context, opts ...Option) (*Controller, error) {
	return newController(gw, sess, ModeCreate, opts)
}

// NewReschedule seeds the form with appt. Only date and time slot stay editable.
// A nil appt is accepted so that Submit can report the missing identifier.
func NewReschedule(gw appointment.Gateway, sess session.Context, appt *appointment.Appointment, opts ...Option) (*Controller, error) {
	c, err := newController(gw, sess, ModeReschedule, opts)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return c, nil
	}
	orig := *appt
	c.original = &orig

	seed := map[string]string{
		FieldPatientName: orig.PatientName,
		FieldBranch:      orig.BranchName,
		FieldDepartment:  orig.DepartmentName,
		FieldDoctor:      orig.DoctorName,
		FieldReason:      orig.Reason,
		FieldDate:        orig.Date.String(),
		FieldTimeSlot:    normalizeSlot(orig.TimeSlot),
	}
	for _, f := range c.schema {
		if v := seed[f.Name]; v != "" {
			c.values[f.Name] = v
		}
		if f.Kind == KindSelect && seed[f.Name] != "" {
			c.options[f.Name] = []string{seed[f.Name]}
		}
	}
	c.stage = StateDoctorSelected
	if c.values[FieldDate] != "" {
		c.stage = StateDateSelected
	}
	return c, nil
}

func normalizeSlot(s string) string {
	if v, err := ParseSlot(s); err == nil {
		return v
	}
	return s
}

// Start loads what the mode needs before the user can pick anything.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	switch {
	case c.mode == ModeReschedule:
		doctor := c.doctorLocked()
		c.doctorSeq++
		seq := c.doctorSeq
		c.mu.Unlock()
		if doctor == "" {
			return nil
		}
		return c.loadAvailability(ctx, doctor, seq)

	case c.schema.Has(FieldDoctor):
		c.mu.Unlock()
		return c.LoadDirectory(ctx)

	default:
		// The signed in doctor books for themselves.
		doctor := c.doctorLocked()
		if strings.TrimSpace(doctor) == "" {
			c.errMsg = MsgInvalidAppointment
			c.mu.Unlock()
			return fmt.Errorf("%w: doctor session has no name", appointment.ErrInvalidAppointment)
		}
		c.doctorSeq++
		seq := c.doctorSeq
		c.stage = StateDoctorSelected
		c.mu.Unlock()
		return c.loadAvailability(ctx, doctor, seq)
	}
}

// LoadDirectory fetches the branch/department/doctor snapshot and resets the cascade.
func (c *Controller) LoadDirectory(ctx context.Context) error {
	dir, err := c.gw.FetchDirectory(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.errMsg = appointment.MessageOf(err, MsgDirectoryFailed)
		return fmt.Errorf("load staff directory: %w", err)
	}
	if c.closed {
		return ErrClosed
	}

	c.directory = dir
	delete(c.values, FieldBranch)
	c.clearAfterLocked(FieldBranch)
	c.options[FieldBranch] = dir.Branches()
	c.stage = StateDirectoryLoaded

	c.log.Debug().Int("branches", len(dir)).Msg("staff directory loaded")
	return nil
}

// doctorLocked is the doctor availability is computed for.
func (c *Controller) doctorLocked() string {
	if c.schema.Has(FieldDoctor) {
		return c.values[FieldDoctor]
	}
	if c.original != nil {
		return c.original.DoctorName
	}
	return c.sess.Name
}

// clearAfterLocked empties every field downstream of field and drops whatever was
// derived from them. Bumping the sequences discards responses still in flight.
func (c *Controller) clearAfterLocked(field string) {
	idx := -1
	for i, f := range cascade {
		if f == field {
			idx = i
			break
		}
	}
	for _, f := range cascade[idx+1:] {
		delete(c.values, f)
		delete(c.touched, f)
		if f == FieldDepartment || f == FieldDoctor {
			delete(c.options, f)
		}
	}
	// branch or department changed: the doctor is gone
	if idx < 2 {
		c.leave = nil
		c.leaveLoaded = false
		c.doctorSeq++
	}
	c.taken = nil
	c.dateSeq++
}

func (c *Controller) editableLocked(field string) error {
	if c.closed {
		return ErrClosed
	}
	if c.submitting {
		return ErrSubmitInFlight
	}
	if !c.schema.Has(field) {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if c.disabledLocked(field) {
		return fmt.Errorf("%w: %s", ErrFieldDisabled, field)
	}
	return nil
}

func (c *Controller) disabledLocked(field string) bool {
	if c.closed || c.submitting {
		return true
	}
	if c.mode == ModeReschedule && field != FieldDate && field != FieldTimeSlot {
		return true
	}
	switch field {
	case FieldBranch:
		return c.directory == nil
	case FieldDepartment:
		return c.values[FieldBranch] == ""
	case FieldDoctor:
		return c.values[FieldDepartment] == ""
	case FieldDate:
		return !c.leaveLoaded
	case FieldTimeSlot:
		return c.values[FieldDate] == ""
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (c *Controller) SelectBranch(branch string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(FieldBranch); err != nil {
		return err
	}
	c.touched[FieldBranch] = true
	if branch == "" {
		delete(c.values, FieldBranch)
		c.clearAfterLocked(FieldBranch)
		c.stage = StateDirectoryLoaded
		return nil
	}
	if !contains(c.options[FieldBranch], branch) {
		return fmt.Errorf("%w: branch %q", ErrUnknownOption, branch)
	}

	c.values[FieldBranch] = branch
	c.clearAfterLocked(FieldBranch)
	c.options[FieldDepartment] = c.directory.Departments(branch)
	c.stage = StateBranchSelected
	return nil
}

func (c *Controller) SelectDepartment(department string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(FieldDepartment); err != nil {
		return err
	}
	c.touched[FieldDepartment] = true
	if department == "" {
		delete(c.values, FieldDepartment)
		c.clearAfterLocked(FieldDepartment)
		c.stage = StateBranchSelected
		return nil
	}
	if !contains(c.options[FieldDepartment], department) {
		return fmt.Errorf("%w: department %q", ErrUnknownOption, department)
	}

	c.values[FieldDepartment] = department
	c.clearAfterLocked(FieldDepartment)
	c.options[FieldDoctor] = c.directory.Doctors(c.values[FieldBranch], department)
	c.stage = StateDepartmentSelected
	return nil
}

// SelectDoctor resets the time slot and reloads the doctor's leave dates. A date
// picked earlier survives only if the new doctor is available on it.
func (c *Controller) SelectDoctor(ctx context.Context, doctor string) error {
	c.mu.Lock()
	if err := c.editableLocked(FieldDoctor); err != nil {
		c.mu.Unlock()
		return err
	}
	c.touched[FieldDoctor] = true
	if doctor == "" {
		delete(c.values, FieldDoctor)
		c.clearAfterLocked(FieldDoctor)
		c.leave = nil
		c.leaveLoaded = false
		c.doctorSeq++
		c.stage = StateDepartmentSelected
		c.mu.Unlock()
		return nil
	}
	if !contains(c.options[FieldDoctor], doctor) {
		c.mu.Unlock()
		return fmt.Errorf("%w: doctor %q", ErrUnknownOption, doctor)
	}

	c.values[FieldDoctor] = doctor
	delete(c.values, FieldTimeSlot)
	c.taken = nil
	c.leave = nil
	c.leaveLoaded = false
	c.doctorSeq++
	c.dateSeq++
	seq := c.doctorSeq
	c.stage = StateDoctorSelected
	c.mu.Unlock()

	return c.loadAvailability(ctx, doctor, seq)
}

func (c *Controller) loadAvailability(ctx context.Context, doctor string, seq uint64) error {
	dates, err := c.gw.FetchLeaveDates(ctx, doctor)

	c.mu.Lock()
	if seq != c.doctorSeq || c.doctorLocked() != doctor {
		c.mu.Unlock()
		c.log.Debug().Str("doctor", doctor).Msg("discarding superseded leave dates")
		return ErrSuperseded
	}
	if err != nil {
		// a date picked for another doctor was never checked against this one's leave
		if c.values[FieldDate] != "" {
			delete(c.values, FieldDate)
			c.clearAfterLocked(FieldDate)
			c.stage = StateDoctorSelected
		}
		c.errMsg = appointment.MessageOf(err, MsgAvailabilityFailed)
		c.mu.Unlock()
		return fmt.Errorf("load leave dates: %w", err)
	}

	c.leave = dates
	c.leaveLoaded = true

	raw := c.values[FieldDate]
	if raw == "" {
		c.mu.Unlock()
		return nil
	}
	date, perr := appointment.ParseDate(raw)
	if perr != nil || c.onLeaveLocked(date) {
		delete(c.values, FieldDate)
		c.clearAfterLocked(FieldDate)
		c.stage = StateDoctorSelected
		c.mu.Unlock()
		return nil
	}
	c.dateSeq++
	dateSeq := c.dateSeq
	c.mu.Unlock()

	return c.loadTakenSlots(ctx, doctor, date, dateSeq)
}

func (c *Controller) onLeaveLocked(d appointment.Date) bool {
	for _, l := range c.leave {
		if l.SameDay(d) {
			return true
		}
	}
	return false
}

// IsDateAvailable reports whether d can be picked for the current doctor.
func (c *Controller) IsDateAvailable(d appointment.Date) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leaveLoaded && !c.onLeaveLocked(d)
}

// SelectDate picks a day for the current doctor and loads the taken slots of that day.
// A leave day clears date and time slot.
func (c *Controller) SelectDate(ctx context.Context, raw string) error {
	c.mu.Lock()
	if err := c.editableLocked(FieldDate); err != nil {
		c.mu.Unlock()
		return err
	}
	c.touched[FieldDate] = true
	if strings.TrimSpace(raw) == "" {
		delete(c.values, FieldDate)
		c.clearAfterLocked(FieldDate)
		c.stage = StateDoctorSelected
		c.mu.Unlock()
		return nil
	}
	date, err := appointment.ParseDate(raw)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if c.onLeaveLocked(date) {
		delete(c.values, FieldDate)
		c.clearAfterLocked(FieldDate)
		c.stage = StateDoctorSelected
		c.errMsg = MsgDateUnavailable
		c.mu.Unlock()
		return ErrDateUnavailable
	}

	c.values[FieldDate] = date.String()
	c.clearAfterLocked(FieldDate)
	seq := c.dateSeq
	doctor := c.doctorLocked()
	c.stage = StateDateSelected
	c.mu.Unlock()

	return c.loadTakenSlots(ctx, doctor, date, seq)
}

func (c *Controller) loadTakenSlots(ctx context.Context, doctor string, date appointment.Date, seq uint64) error {
	slots, err := c.gw.FetchTakenSlots(ctx, doctor, date)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.dateSeq || c.doctorLocked() != doctor || c.values[FieldDate] != date.String() {
		c.log.Debug().Str("doctor", doctor).Str("date", date.String()).Msg("discarding superseded taken slots")
		return ErrSuperseded
	}
	if err != nil {
		c.errMsg = appointment.MessageOf(err, MsgAvailabilityFailed)
		return fmt.Errorf("load taken slots: %w", err)
	}

	taken := make(map[string]bool, len(slots))
	for _, s := range slots {
		if v, err := ParseSlot(s); err == nil {
			taken[v] = true
		}
	}
	c.taken = taken

	if v := c.values[FieldTimeSlot]; v != "" && c.takenLocked(v) {
		delete(c.values, FieldTimeSlot)
	}
	c.stage = StateDateSelected
	return nil
}

// takenLocked ignores the slot the rescheduled appointment itself occupies.
func (c *Controller) takenLocked(value string) bool {
	if !c.taken[value] {
		return false
	}
	if c.original != nil &&
		c.original.Date.String() == c.values[FieldDate] &&
		normalizeSlot(c.original.TimeSlot) == value &&
		c.original.DoctorName == c.doctorLocked() {
		return false
	}
	return true
}

func (c *Controller) SelectTimeSlot(raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(FieldTimeSlot); err != nil {
		return err
	}
	c.touched[FieldTimeSlot] = true
	if strings.TrimSpace(raw) == "" {
		delete(c.values, FieldTimeSlot)
		return nil
	}
	value, err := ParseSlot(raw)
	if err != nil || !onGrid(value, c.hours.Opening, c.hours.Closing) {
		return fmt.Errorf("%w: %q", ErrSlotUnavailable, raw)
	}
	if c.takenLocked(value) {
		return fmt.Errorf("%w: %s already taken", ErrSlotUnavailable, value)
	}
	c.values[FieldTimeSlot] = value
	return nil
}

// SetText sets a free text field.
func (c *Controller) SetText(field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(field); err != nil {
		return err
	}
	if spec, _ := c.schema.Lookup(field); spec.Kind != KindText {
		return fmt.Errorf("%w: %s is not a text field", ErrUnknownField, field)
	}
	c.touched[field] = true
	if value == "" {
		delete(c.values, field)
		return nil
	}
	c.values[field] = value
	return nil
}

// Set routes a value to the operation its field kind needs.
func (c *Controller) Set(ctx context.Context, field, value string) error {
	spec, ok := c.schema.Lookup(field)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	switch spec.Kind {
	case KindText:
		return c.SetText(field, value)
	case KindDate:
		return c.SelectDate(ctx, value)
	case KindTime:
		return c.SelectTimeSlot(value)
	}
	switch field {
	case FieldBranch:
		return c.SelectBranch(value)
	case FieldDepartment:
		return c.SelectDepartment(value)
	case FieldDoctor:
		return c.SelectDoctor(ctx, value)
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// IsSameAsOriginal reports whether the edited date and slot still match the
// appointment being rescheduled.
func (c *Controller) IsSameAsOriginal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.original == nil {
		return false
	}
	return c.original.Date.String() == c.values[FieldDate] &&
		normalizeSlot(c.original.TimeSlot) == c.values[FieldTimeSlot]
}

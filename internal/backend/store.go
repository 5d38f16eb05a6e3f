package backend

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/booking"
	"github.com/hackgods/clinic-booking/internal/listing"
)

var (
	ErrUnknownBranch     = errors.New("unknown branch")
	ErrUnknownDepartment = errors.New("unknown department")
	ErrUnknownDoctor     = errors.New("unknown doctor")
	ErrMissingField      = errors.New("missing required field")
	ErrInvalidSlot       = errors.New("time slot is outside opening hours")
	ErrDoctorOnLeave     = errors.New("doctor is on leave that day")
	ErrSlotAlreadyBooked = errors.New("slot already booked")
)

// Store is the in-memory clinic backend the dev server and integration tests run on.
type Store struct {
	hours booking.Hours

	mu           sync.RWMutex
	branches     []appointment.Named
	departments  []appointment.Named
	doctors      map[string]appointment.Doctor
	leave        map[string][]appointment.Date
	appointments map[string]*appointment.Appointment
	order        []string
}

func NewStore(opening, closing int) *Store {
	return &Store{
		hours:        booking.Hours{Opening: opening, Closing: closing},
		doctors:      map[string]appointment.Doctor{},
		leave:        map[string][]appointment.Date{},
		appointments: map[string]*appointment.Appointment{},
	}
}

func (s *Store) AddBranch(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !hasName(s.branches, name) {
		s.branches = append(s.branches, appointment.Named{Name: name})
	}
}

func (s *Store) AddDepartment(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !hasName(s.departments, name) {
		s.departments = append(s.departments, appointment.Named{Name: name})
	}
}

func (s *Store) AddDoctor(d appointment.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !hasName(s.branches, d.BranchName) {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, d.BranchName)
	}
	if !hasName(s.departments, d.DepartmentName) {
		return fmt.Errorf("%w: %s", ErrUnknownDepartment, d.DepartmentName)
	}
	s.doctors[d.Name] = d
	return nil
}

func (s *Store) AddLeave(doctor string, day appointment.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doctors[doctor]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDoctor, doctor)
	}
	s.leave[doctor] = append(s.leave[doctor], day)
	return nil
}

func hasName(list []appointment.Named, name string) bool {
	return slices.ContainsFunc(list, func(n appointment.Named) bool { return n.Name == name })
}

// Directory returns the [doctors, branches, departments] triple the REST contract serves.
func (s *Store) Directory() ([]appointment.Doctor, []appointment.Named, []appointment.Named) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doctors := make([]appointment.Doctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		doctors = append(doctors, d)
	}
	slices.SortFunc(doctors, func(a, b appointment.Doctor) int { return strings.Compare(a.Name, b.Name) })
	return doctors, slices.Clone(s.branches), slices.Clone(s.departments)
}

func (s *Store) LeaveDates(doctor string) []appointment.Date {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.leave[doctor])
}

// TakenSlots lists the slots of doctor on day held by an appointment that is not cancelled.
func (s *Store) TakenSlots(doctor string, day appointment.Date) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.takenLocked(doctor, day, "")
}

func (s *Store) takenLocked(doctor string, day appointment.Date, except string) []string {
	out := []string{}
	for _, id := range s.order {
		a := s.appointments[id]
		if id == except || a.DoctorName != doctor || !a.Date.SameDay(day) || a.Status == appointment.StatusCancelled {
			continue
		}
		out = append(out, a.TimeSlot)
	}
	slices.Sort(out)
	return out
}

// Scope limits a listing to the caller's own appointments.
type Scope struct {
	Patient string
	Doctor  string
}

func (sc Scope) allows(a *appointment.Appointment) bool {
	if sc.Patient != "" && a.PatientName != sc.Patient {
		return false
	}
	if sc.Doctor != "" && a.DoctorName != sc.Doctor {
		return false
	}
	return true
}

// List filters and sorts across every appointment in scope, then cuts one page.
func (s *Store) List(scope Scope, req appointment.PageRequest) appointment.Page {
	s.mu.RLock()
	all := make([]appointment.Appointment, 0, len(s.order))
	for _, id := range s.order {
		if a := s.appointments[id]; scope.allows(a) {
			all = append(all, *a)
		}
	}
	s.mu.RUnlock()

	filtered := listing.Apply(all, listing.Query{
		Search:    req.Search,
		Status:    req.Status,
		From:      req.From,
		To:        req.To,
		Sort:      req.Sort,
		Direction: req.Direction,
	})

	size := req.Size
	if size < 1 {
		size = listing.DefaultPageSize
	}
	start := min(max(req.Page, 0)*size, len(filtered))
	end := min(start+size, len(filtered))
	return appointment.Page{Items: filtered[start:end], TotalCount: len(filtered)}
}

func (s *Store) Get(id string) (*appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

// Create books a slot. For the doctor role the caller is the doctor; for the patient
// role the caller is the patient.
func (s *Store) Create(role, caller string, fields map[string]string) (*appointment.Appointment, error) {
	a := &appointment.Appointment{
		ID:          uuid.NewString(),
		PatientName: strings.TrimSpace(fields["patientName"]),
		DoctorName:  strings.TrimSpace(fields["doctorName"]),
		Reason:      strings.TrimSpace(fields["reason"]),
		Status:      appointment.StatusPending,
	}
	switch role {
	case "doctor":
		a.DoctorName = caller
		if a.PatientName == "" {
			return nil, fmt.Errorf("%w: patientName", ErrMissingField)
		}
	default:
		if caller != "" {
			a.PatientName = caller
		}
		if a.PatientName == "" {
			a.PatientName = "Walk-in patient"
		}
	}
	if a.DoctorName == "" {
		return nil, fmt.Errorf("%w: doctorName", ErrMissingField)
	}

	day, slot, err := s.parseSlot(fields["date"], fields["timeSlot"])
	if err != nil {
		return nil, err
	}
	a.Date, a.TimeSlot = day, slot

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.doctors[a.DoctorName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDoctor, a.DoctorName)
	}
	if b := strings.TrimSpace(fields["branchName"]); b != "" && b != doc.BranchName {
		return nil, fmt.Errorf("%w: %s does not work at %s", ErrUnknownDoctor, doc.Name, b)
	}
	a.BranchName, a.DepartmentName = doc.BranchName, doc.DepartmentName

	if err := s.checkFreeLocked(a.DoctorName, day, slot, ""); err != nil {
		return nil, err
	}
	s.appointments[a.ID] = a
	s.order = append(s.order, a.ID)

	out := *a
	return &out, nil
}

func (s *Store) Reschedule(id string, day appointment.Date, rawSlot string) (*appointment.Appointment, error) {
	day, slot, err := s.parseSlot(day.String(), rawSlot)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if !a.Status.CanReschedule() {
		return nil, fmt.Errorf("%w: %s", appointment.ErrTerminalStatus, a.Status)
	}
	if err := s.checkFreeLocked(a.DoctorName, day, slot, id); err != nil {
		return nil, err
	}
	a.Date, a.TimeSlot = day, slot

	out := *a
	return &out, nil
}

func (s *Store) Cancel(id string) error {
	return s.transition(id, appointment.StatusCancelled)
}

// SetStatus moves a live appointment to status. Terminal appointments stay as they are.
func (s *Store) SetStatus(id string, status appointment.AppointmentStatus) error {
	return s.transition(id, status)
}

func (s *Store) transition(id string, to appointment.AppointmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	if a.Status.Terminal() {
		return fmt.Errorf("%w: %s", appointment.ErrTerminalStatus, a.Status)
	}
	a.Status = to
	return nil
}

func (s *Store) AttachReport(id string, r appointment.MedicalReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	a.MedicalReport = &r
	return nil
}

func (s *Store) parseSlot(rawDate, rawSlot string) (appointment.Date, string, error) {
	if strings.TrimSpace(rawDate) == "" {
		return appointment.Date{}, "", fmt.Errorf("%w: date", ErrMissingField)
	}
	day, err := appointment.ParseDate(rawDate)
	if err != nil {
		return appointment.Date{}, "", fmt.Errorf("%w: %v", appointment.ErrInvalidAppointment, err)
	}
	if strings.TrimSpace(rawSlot) == "" {
		return appointment.Date{}, "", fmt.Errorf("%w: timeSlot", ErrMissingField)
	}
	slot, err := booking.ParseSlot(rawSlot)
	if err != nil {
		return appointment.Date{}, "", fmt.Errorf("%w: %v", appointment.ErrInvalidAppointment, err)
	}
	for opt := range booking.Slots(s.hours.Opening, s.hours.Closing) {
		if opt.Value == slot {
			return day, slot, nil
		}
	}
	return appointment.Date{}, "", fmt.Errorf("%w: %s", ErrInvalidSlot, slot)
}

func (s *Store) checkFreeLocked(doctor string, day appointment.Date, slot, except string) error {
	for _, l := range s.leave[doctor] {
		if l.SameDay(day) {
			return fmt.Errorf("%w: %s on %s", ErrDoctorOnLeave, doctor, day)
		}
	}
	if slices.Contains(s.takenLocked(doctor, day, except), slot) {
		return fmt.Errorf("%w: %s %s %s", ErrSlotAlreadyBooked, doctor, day, slot)
	}
	return nil
}

package appointment

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// ParseStatus accepts any casing the backend sends ("PENDING", "Pending", "pending").
func ParseStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
}

// Terminal reports whether no further transition is allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func (s AppointmentStatus) CanCancel() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s AppointmentStatus) CanReschedule() bool {
	return s == StatusPending || s == StatusConfirmed
}

// rank orders statuses along the lifecycle for sorting.
func (s AppointmentStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusConfirmed:
		return 1
	case StatusCompleted:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 4
	}
}

// Compare orders two statuses by lifecycle position.
func (s AppointmentStatus) Compare(other AppointmentStatus) int {
	return s.rank() - other.rank()
}

func (s *AppointmentStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = StatusPending
		return nil
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

const DateLayout = "2006-01-02"

// Date is a calendar day. The time of day is always midnight UTC.
type Date struct {
	time.Time
}

// DateOf drops the time of day, keeping the calendar day t has in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD and full RFC3339 timestamps.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// SameDay compares calendar days, ignoring time of day.
func (d Date) SameDay(other Date) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := other.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type MedicalReport struct {
	ID        string `json:"id,omitempty"`
	Symptom   string `json:"symptom"`
	Diagnosis string `json:"diagnosis"`
	Notes     string `json:"notes,omitempty"`
}

type Appointment struct {
	ID             string            `json:"id"`
	PatientName    string            `json:"patientName"`
	DoctorName     string            `json:"doctorName"`
	DepartmentName string            `json:"departmentName"`
	BranchName     string            `json:"branchName"`
	Date           Date              `json:"date"`
	TimeSlot       string            `json:"timeSlot"`
	Status         AppointmentStatus `json:"status"`
	Reason         string            `json:"reason,omitempty"`
	MedicalReport  *MedicalReport    `json:"medicalReport,omitempty"`
}

// StaffDirectory maps branch -> department -> doctor names.
type StaffDirectory map[string]map[string][]string

type Doctor struct {
	Name           string `json:"name"`
	DepartmentName string `json:"departmentName"`
	BranchName     string `json:"branchName"`
}

type Named struct {
	Name string `json:"name"`
}

// BuildDirectory crosses every branch with every department and files each doctor
// under the branch and department it belongs to.
func BuildDirectory(doctors []Doctor, branches, departments []Named) StaffDirectory {
	dir := make(StaffDirectory, len(branches))
	for _, b := range branches {
		depts := make(map[string][]string, len(departments))
		for _, d := range departments {
			names := []string{}
			for _, doc := range doctors {
				if doc.BranchName == b.Name && doc.DepartmentName == d.Name {
					names = append(names, doc.Name)
				}
			}
			depts[d.Name] = names
		}
		dir[b.Name] = depts
	}
	return dir
}

func (d StaffDirectory) Branches() []string {
	out := make([]string, 0, len(d))
	for b := range d {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

func (d StaffDirectory) Departments(branch string) []string {
	depts, ok := d[branch]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(depts))
	for name := range depts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (d StaffDirectory) Doctors(branch, department string) []string {
	docs := d[branch][department]
	out := make([]string, len(docs))
	copy(out, docs)
	return out
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

type SortKey string

const (
	SortByDate   SortKey = "date"
	SortByStatus SortKey = "status"
)

// PageRequest is the gateway side of a list query. Page is zero-based.
type PageRequest struct {
	Page      int
	Size      int
	Direction SortDirection
	Sort      SortKey
	Search    string
	Status    AppointmentStatus
	From      Date
	To        Date
}

type Page struct {
	Items      []Appointment `json:"data"`
	TotalCount int           `json:"totalElements"`
}

// CreateRequest is the role-tagged field map sent on booking.
type CreateRequest struct {
	Role   string
	Fields map[string]string
}

type RescheduleRequest struct {
	ID       string `json:"id"`
	Date     Date   `json:"date"`
	TimeSlot string `json:"timeSlot"`
}

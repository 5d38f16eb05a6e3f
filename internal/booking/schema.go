package booking

import (
	"strings"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/session"
)

type FieldKind string

const (
	KindText   FieldKind = "text"
	KindSelect FieldKind = "select"
	KindDate   FieldKind = "date"
	KindTime   FieldKind = "time"
)

const (
	FieldPatientName = "patientName"
	FieldBranch      = "branchName"
	FieldDepartment  = "departmentName"
	FieldDoctor      = "doctorName"
	FieldReason      = "reason"
	FieldDate        = "date"
	FieldTimeSlot    = "timeSlot"

	fieldRole = "roleName"
)

// FieldSpec declares one input of the booking form.
type FieldSpec struct {
	Name        string
	Kind        FieldKind
	Placeholder string
	// RequiredMessage is empty for optional fields.
	RequiredMessage string
}

func (f FieldSpec) Required() bool { return f.RequiredMessage != "" }

// Schema is the ordered field list of one role.
type Schema []FieldSpec

var fieldSpecs = map[string]FieldSpec{
	FieldPatientName: {Name: FieldPatientName, Kind: KindText, Placeholder: "Enter Patient Name", RequiredMessage: "Patient Name is required"},
	FieldBranch:      {Name: FieldBranch, Kind: KindSelect, Placeholder: "Enter Branch Name", RequiredMessage: "Branch Name is required"},
	FieldDepartment:  {Name: FieldDepartment, Kind: KindSelect, Placeholder: "Enter Department Name"},
	FieldDoctor:      {Name: FieldDoctor, Kind: KindSelect, Placeholder: "Enter Doctor Name", RequiredMessage: "Doctor Name is required"},
	FieldReason:      {Name: FieldReason, Kind: KindText, Placeholder: "Enter Reason for Appointment"},
	FieldDate:        {Name: FieldDate, Kind: KindDate, Placeholder: "Select Date", RequiredMessage: "Date is required"},
	FieldTimeSlot:    {Name: FieldTimeSlot, Kind: KindTime, Placeholder: "Select Time Slot", RequiredMessage: "Time Slot is required"},
}

var roleFields = map[session.Role][]string{
	session.RolePatient: {FieldBranch, FieldDepartment, FieldDoctor, FieldReason, FieldDate, FieldTimeSlot},
	session.RoleDoctor:  {FieldPatientName, FieldDate, FieldTimeSlot},
}

// SchemaFor returns the field list configured for role.
func SchemaFor(role session.Role) (Schema, error) {
	names, ok := roleFields[role]
	if !ok {
		return nil, ErrUnsupportedRole
	}
	out := make(Schema, 0, len(names))
	for _, n := range names {
		out = append(out, fieldSpecs[n])
	}
	return out, nil
}

func (s Schema) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

func (s Schema) Lookup(name string) (FieldSpec, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Rule is a pure check on a non-empty field value.
type Rule struct {
	Check   func(value string, h Hours) bool
	Message string
}

// Hours is the opening window the time slot grid is built from.
type Hours struct {
	Opening int
	Closing int
}

var fieldRules = map[string][]Rule{
	FieldPatientName: {{
		Check:   func(v string, _ Hours) bool { return strings.TrimSpace(v) != "" },
		Message: "Patient Name is required",
	}},
	FieldDate: {{
		Check: func(v string, _ Hours) bool {
			_, err := appointment.ParseDate(v)
			return err == nil
		},
		Message: "Date must be in YYYY-MM-DD format",
	}},
	FieldTimeSlot: {{
		Check: func(v string, h Hours) bool {
			value, err := ParseSlot(v)
			return err == nil && onGrid(value, h.Opening, h.Closing)
		},
		Message: "Time Slot must be a half-hour slot within opening hours",
	}},
}

// validateField returns the messages for value under spec; nil means valid.
func validateField(spec FieldSpec, value string, h Hours) []string {
	if strings.TrimSpace(value) == "" {
		if spec.Required() {
			return []string{spec.RequiredMessage}
		}
		return nil
	}
	var msgs []string
	for _, rule := range fieldRules[spec.Name] {
		if !rule.Check(value, h) {
			msgs = append(msgs, rule.Message)
		}
	}
	return msgs
}

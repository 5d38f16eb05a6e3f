package backend

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/booking"
)

var (
	seedBranches    = []string{"Central", "North", "Riverside", "Old Town"}
	seedDepartments = []string{
		"Cardiology",
		"Dermatology",
		"General Practice",
		"Orthopedics",
		"Neurology",
		"Pediatrics",
	}
	seedReasons   = []string{"checkup", "follow-up", "consultation", "vaccination", "lab results", ""}
	seedSymptoms  = []string{"cough", "headache", "rash", "back pain", "fatigue", "chest pain"}
	seedDiagnoses = []string{"common cold", "migraine", "contact dermatitis", "muscle strain", "anemia", "angina"}
)

// SeedOptions controls how much fake data Seed generates.
type SeedOptions struct {
	Doctors      int
	Appointments int
	// Start is the first day appointments and leave are spread over.
	Start time.Time
	Days  int
	// RandSeed makes a run reproducible when non-zero.
	RandSeed uint64
}

type SeedResult struct {
	Doctors      int
	Appointments int
	LeaveDays    int
}

// Seed fills s with branches, departments, doctors, leave days and appointments.
// Collisions with leave or taken slots are skipped, so Appointments is an upper bound.
func Seed(s *Store, opts SeedOptions) (SeedResult, error) {
	faker := gofakeit.New(opts.RandSeed)
	if opts.Days < 1 {
		opts.Days = 30
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}

	for _, b := range seedBranches {
		s.AddBranch(b)
	}
	for _, d := range seedDepartments {
		s.AddDepartment(d)
	}

	var res SeedResult
	var doctors []string
	for i := 0; i < opts.Doctors; i++ {
		doc := appointment.Doctor{
			Name:           "Dr. " + faker.LastName(),
			BranchName:     seedBranches[faker.Number(0, len(seedBranches)-1)],
			DepartmentName: seedDepartments[faker.Number(0, len(seedDepartments)-1)],
		}
		for s.hasDoctor(doc.Name) {
			doc.Name = fmt.Sprintf("%s %s", doc.Name, faker.LetterN(1))
		}
		if err := s.AddDoctor(doc); err != nil {
			return res, fmt.Errorf("seed doctor %s: %w", doc.Name, err)
		}
		doctors = append(doctors, doc.Name)
		res.Doctors++

		if faker.Bool() {
			day := appointment.DateOf(opts.Start.AddDate(0, 0, faker.Number(0, opts.Days-1)))
			if err := s.AddLeave(doc.Name, day); err != nil {
				return res, err
			}
			res.LeaveDays++
		}
	}
	if len(doctors) == 0 {
		return res, nil
	}

	var slots []string
	for slot := range booking.Slots(s.hours.Opening, s.hours.Closing) {
		slots = append(slots, slot.Value)
	}

	for i := 0; i < opts.Appointments; i++ {
		day := appointment.DateOf(opts.Start.AddDate(0, 0, faker.Number(0, opts.Days-1)))
		fields := map[string]string{
			"patientName": faker.Name(),
			"doctorName":  doctors[faker.Number(0, len(doctors)-1)],
			"reason":      seedReasons[faker.Number(0, len(seedReasons)-1)],
			"date":        day.String(),
			"timeSlot":    slots[faker.Number(0, len(slots)-1)],
		}
		a, err := s.Create("patient", "", fields)
		if err != nil {
			// leave day or taken slot
			continue
		}
		res.Appointments++

		switch n := faker.Number(0, 9); {
		case n < 3:
			_ = s.SetStatus(a.ID, appointment.StatusConfirmed)
		case n < 5:
			_ = s.SetStatus(a.ID, appointment.StatusCompleted)
			_ = s.AttachReport(a.ID, appointment.MedicalReport{
				Symptom:   faker.RandomString(seedSymptoms),
				Diagnosis: faker.RandomString(seedDiagnoses),
				Notes:     fmt.Sprintf("Follow up in %d weeks", faker.Number(1, 8)),
			})
		case n < 6:
			_ = s.Cancel(a.ID)
		}
	}
	return res, nil
}

func (s *Store) hasDoctor(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.doctors[name]
	return ok
}

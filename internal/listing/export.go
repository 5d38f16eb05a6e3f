package listing

import (
	"bufio"
	"io"
	"strings"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/booking"
)

var csvHeader = []string{"Date", "Time", "Patient", "Doctor", "Department", "Branch", "Status", "Reason"}

// ExportCSV writes the visible appointments, header first. Every field is quoted.
func (c *Controller) ExportCSV(w io.Writer) error {
	return WriteCSV(w, c.Visible())
}

func WriteCSV(w io.Writer, items []appointment.Appointment) error {
	bw := bufio.NewWriter(w)
	if err := writeRow(bw, csvHeader); err != nil {
		return err
	}
	for _, a := range items {
		row := []string{
			a.Date.String(),
			booking.SlotLabel(a.TimeSlot),
			a.PatientName,
			a.DoctorName,
			a.DepartmentName,
			a.BranchName,
			string(a.Status),
			a.Reason,
		}
		if err := writeRow(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(f, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/booking"
)

func bookCmd(g *globalFlags) *cobra.Command {
	values := map[string]*string{}
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a new appointment",
		Long: "Book a new appointment. Patients pick branch, department and doctor; doctors book\n" +
			"for a patient in their own schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), g, cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				form, err := a.list().CreateNew(ctx)
				if err != nil {
					return err
				}
				for _, spec := range form.Schema() {
					v, ok := values[spec.Name]
					if !ok || *v == "" {
						continue
					}
					if err := form.Set(ctx, spec.Name, *v); err != nil {
						return fieldError(form, spec.Name, err)
					}
				}
				created, err := form.Submit(ctx)
				if err != nil {
					return submitError(cmd.ErrOrStderr(), form, err)
				}
				return printAppointment(cmd.OutOrStdout(), created)
			})
		},
	}
	for _, f := range []struct{ field, flag, usage string }{
		{booking.FieldPatientName, "patient", "patient name (doctor sessions)"},
		{booking.FieldBranch, "branch", "branch name"},
		{booking.FieldDepartment, "department", "department name"},
		{booking.FieldDoctor, "doctor", "doctor name"},
		{booking.FieldReason, "reason", "reason for the visit"},
		{booking.FieldDate, "date", "day of the visit, YYYY-MM-DD"},
		{booking.FieldTimeSlot, "slot", `start time, "09:30" or "9:30 AM"`},
	} {
		values[f.field] = cmd.Flags().String(f.flag, "", f.usage)
	}
	return cmd
}

func rescheduleCmd(g *globalFlags) *cobra.Command {
	var date, slot string
	cmd := &cobra.Command{
		Use:   "reschedule ID",
		Short: "Move an appointment to another date or time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), g, cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				appt, err := a.findAppointment(ctx, args[0])
				if err != nil {
					return err
				}
				form, err := a.list().Reschedule(ctx, appt)
				if err != nil {
					return err
				}
				if date != "" {
					if err := form.SelectDate(ctx, date); err != nil {
						return fieldError(form, booking.FieldDate, err)
					}
				}
				if slot != "" {
					if err := form.SelectTimeSlot(slot); err != nil {
						return fieldError(form, booking.FieldTimeSlot, err)
					}
				}
				if form.IsSameAsOriginal() {
					form.Close(ctx)
					return errors.New("the appointment is already at that date and time")
				}
				moved, err := form.Submit(ctx)
				if err != nil {
					return submitError(cmd.ErrOrStderr(), form, err)
				}
				return printAppointment(cmd.OutOrStdout(), moved)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "new day, YYYY-MM-DD")
	cmd.Flags().StringVar(&slot, "slot", "", `new start time, "09:30" or "9:30 AM"`)
	return cmd
}

func fieldError(form *booking.Controller, field string, err error) error {
	if msg := form.ErrorMessage(); msg != "" {
		return fmt.Errorf("%s: %s", field, msg)
	}
	return fmt.Errorf("%s: %w", field, err)
}

// submitError prints per field messages for a validation failure and returns the
// form's user facing message.
func submitError(w io.Writer, form *booking.Controller, err error) error {
	var verr *booking.ValidationError
	if errors.As(err, &verr) {
		names := make([]string, 0, len(verr.Fields))
		for name := range verr.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %s\n", name, strings.Join(verr.Fields[name], ", "))
		}
	}
	if msg := form.ErrorMessage(); msg != "" {
		return errors.New(msg)
	}
	return err
}

func printAppointment(w io.Writer, appt *appointment.Appointment) error {
	if appt == nil {
		return nil
	}
	_, err := fmt.Fprintf(w, "%s  %s %s  %s with %s (%s, %s)  %s\n",
		appt.ID, appt.Date, booking.SlotLabel(appt.TimeSlot), appt.PatientName, appt.DoctorName,
		appt.DepartmentName, appt.BranchName, appt.Status)
	return err
}

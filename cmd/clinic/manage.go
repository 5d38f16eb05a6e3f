package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/booking"
)

func cancelCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a pending or confirmed appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), g, cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				appt, err := a.findAppointment(ctx, args[0])
				if err != nil {
					return err
				}
				return a.list().Cancel(ctx, appt)
			})
		},
	}
}

func reportCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "report ID",
		Short: "Show the medical report of an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), g, cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				appt, err := a.findAppointment(ctx, args[0])
				if err != nil {
					return err
				}
				report, err := a.list().Report(ctx, appt)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Appointment: %s on %s with %s\n", appt.ID, appt.Date, appt.DoctorName)
				fmt.Fprintf(w, "Symptom:     %s\n", report.Symptom)
				fmt.Fprintf(w, "Diagnosis:   %s\n", report.Diagnosis)
				if report.Notes != "" {
					fmt.Fprintf(w, "Notes:       %s\n", report.Notes)
				}
				return nil
			})
		},
	}
}

func slotsCmd(g *globalFlags) *cobra.Command {
	var doctor, date string
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show a doctor's free and taken slots for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := appointment.ParseDate(date)
			if err != nil {
				return err
			}
			return run(cmd.Context(), g, cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				if doctor == "" {
					doctor = a.sess.Name
				}
				if doctor == "" {
					return errors.New("--doctor is required")
				}

				leave, err := a.gw.FetchLeaveDates(ctx, doctor)
				if err != nil {
					return errors.New(appointment.MessageOf(err, booking.MsgAvailabilityFailed))
				}
				if slices.ContainsFunc(leave, day.SameDay) {
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s is on leave on %s.\n", doctor, day)
					return err
				}

				taken, err := a.gw.FetchTakenSlots(ctx, doctor, day)
				if err != nil {
					return errors.New(appointment.MessageOf(err, booking.MsgAvailabilityFailed))
				}
				takenSet := make(map[string]bool, len(taken))
				for _, s := range taken {
					if v, err := booking.ParseSlot(s); err == nil {
						takenSet[v] = true
					}
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tSTATUS")
				for slot := range booking.Slots(a.cfg.OpeningHour, a.cfg.ClosingHour) {
					status := "free"
					if takenSet[slot.Value] {
						status = "taken"
					}
					fmt.Fprintf(tw, "%s\t%s\n", slot.Label, status)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&doctor, "doctor", "", "doctor name (default: the session name)")
	cmd.Flags().StringVar(&date, "date", "", "day, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

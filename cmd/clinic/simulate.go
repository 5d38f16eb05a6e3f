package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/booking"
	"github.com/hackgods/clinic-booking/internal/simulate"
)

func simulateCmd(g *globalFlags) *cobra.Command {
	var cfg simulate.Config
	var from string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run concurrent booking sessions against the backend and report conflicts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if from != "" {
				day, err := appointment.ParseDate(from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				cfg.Start = day.Time
			}
			return run(cmd.Context(), g, cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				// per-form logs would drown the report
				formOpts := []booking.Option{booking.WithRecorder(a.recorder)}
				if a.locker != nil {
					formOpts = append(formOpts, booking.WithLocker(a.locker))
				}
				sim, err := simulate.New(a.gw, a.sess, cfg,
					simulate.WithLogger(a.log),
					simulate.WithHours(a.cfg.OpeningHour, a.cfg.ClosingHour),
					simulate.WithFormOptions(formOpts...),
				)
				if err != nil {
					return err
				}
				if err := sim.Run(ctx); err != nil {
					return err
				}
				sim.PrintReport(cmd.OutOrStdout())
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.DurationVar(&cfg.Duration, "duration", 30*time.Second, "how long to run")
	f.IntVar(&cfg.Workers, "workers", 10, "concurrent sessions")
	f.Float64Var(&cfg.BookRatio, "book", 0.6, "share of booking attempts")
	f.Float64Var(&cfg.CancelRatio, "cancel", 0.2, "share of cancellations")
	f.Float64Var(&cfg.ListRatio, "list", 0.2, "share of list loads")
	f.IntVar(&cfg.Days, "days", 7, "number of days bookings are spread over")
	f.StringVar(&from, "from", "", "first day to book, YYYY-MM-DD (default today)")
	f.Uint64Var(&cfg.Seed, "seed", 0, "random seed")
	return cmd
}

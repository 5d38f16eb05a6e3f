package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	role        string
	name        string
	backend     string
	showMetrics bool
}

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:           "clinic",
		Short:         "Book and manage clinic appointments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.role, "role", "", "session role: patient, doctor or admin (overrides SESSION_ROLE and the token)")
	rootCmd.PersistentFlags().StringVar(&flags.name, "name", "", "session display name; the doctor name for doctor sessions")
	rootCmd.PersistentFlags().StringVar(&flags.backend, "backend", "", "backend base url (overrides BACKEND_URL)")
	rootCmd.PersistentFlags().BoolVar(&flags.showMetrics, "metrics", false, "print gateway metrics to stderr on exit")

	rootCmd.AddCommand(listCmd(&flags))
	rootCmd.AddCommand(bookCmd(&flags))
	rootCmd.AddCommand(rescheduleCmd(&flags))
	rootCmd.AddCommand(cancelCmd(&flags))
	rootCmd.AddCommand(reportCmd(&flags))
	rootCmd.AddCommand(slotsCmd(&flags))
	rootCmd.AddCommand(simulateCmd(&flags))
	return rootCmd
}

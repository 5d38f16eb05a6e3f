package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/booking"
	"github.com/hackgods/clinic-booking/internal/listing"
)

type listFlags struct {
	page   int
	size   int
	search string
	status string
	from   string
	to     string
	sort   string
	desc   bool
	csv    bool
}

func listCmd(g *globalFlags) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"appointments", "ls"},
		Short:   "List the session's appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), g, cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				q, err := f.query(a.cfg.PageSize)
				if err != nil {
					return err
				}
				list := a.list()
				if err := list.SetQuery(ctx, q); err != nil {
					return err
				}
				if f.csv {
					return list.ExportCSV(cmd.OutOrStdout())
				}
				return printList(cmd.OutOrStdout(), list)
			})
		},
	}
	cmd.Flags().IntVar(&f.page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&f.size, "size", 0, "page size (default PAGE_SIZE)")
	cmd.Flags().StringVar(&f.search, "search", "", "match patient, doctor, department, branch or reason")
	cmd.Flags().StringVar(&f.status, "status", "", "only show pending, confirmed, completed or cancelled")
	cmd.Flags().StringVar(&f.from, "from", "", "first day to show, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "last day to show, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.sort, "sort", string(appointment.SortByDate), "sort by date or status")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.Flags().BoolVar(&f.csv, "csv", false, "write the page as CSV")
	return cmd
}

func (f listFlags) query(defaultSize int) (listing.Query, error) {
	q := listing.DefaultQuery(defaultSize)
	q.Page = f.page
	if f.size != 0 {
		q.Size = f.size
	}
	q.Search = f.search

	switch key := appointment.SortKey(f.sort); key {
	case appointment.SortByDate, appointment.SortByStatus:
		q.Sort = key
	default:
		return q, fmt.Errorf("unknown sort key %q (want date or status)", f.sort)
	}
	if f.desc {
		q.Direction = appointment.SortDesc
	}

	var err error
	if f.status != "" {
		if q.Status, err = appointment.ParseStatus(f.status); err != nil {
			return q, err
		}
	}
	if f.from != "" {
		if q.From, err = appointment.ParseDate(f.from); err != nil {
			return q, err
		}
	}
	if f.to != "" {
		if q.To, err = appointment.ParseDate(f.to); err != nil {
			return q, err
		}
	}
	return q, nil
}

func printList(w io.Writer, list *listing.Controller) error {
	items := list.Visible()
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No appointments found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tPATIENT\tDOCTOR\tDEPARTMENT\tBRANCH\tSTATUS")
	for _, appt := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			appt.ID, appt.Date, booking.SlotLabel(appt.TimeSlot), appt.PatientName, appt.DoctorName,
			appt.DepartmentName, appt.BranchName, appt.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Showing %d-%d of %d\n",
		list.CalculateFirstItemIndex(), list.CalculateLastItemIndex(), list.Total())
	return err
}

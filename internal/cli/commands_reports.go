package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"carnote/internal/core"
)

func newStatusCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the maintenance status board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), app, func(e *env) error {
				board, err := e.maintenance.StatusBoard(cmd.Context(), e.today)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), board)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  mileage %d %s  overdue %d  soon %d  ok %d\n",
					board.Today, board.CurrentMileage, board.UnitDistance,
					len(board.Overdue), len(board.Soon), len(board.OK))
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "TEMPLATE\tSTATUS\tNEXT DATE\tNEXT MILEAGE\tLAST DONE")
				for _, row := range board.Rows {
					last := "-"
					if row.LastRecord != nil {
						last = fmt.Sprintf("%s @ %d", row.LastRecord.Date, row.LastRecord.Mileage)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						row.Template.Title, row.Status, dateOrDash(row.Date), intOrDash(row.Mileage), last)
				}
				return tw.Flush()
			})
		},
	}
}

func newReportCmd(app *App, opts *rootOptions) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the monthly cost breakdown of a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), app, func(e *env) error {
				y := year
				if y == 0 {
					y = e.today.Year()
				}
				if y < 1900 || y > 9999 {
					return fmt.Errorf("--year %d out of range", y)
				}
				r, err := e.reports.Yearly(cmd.Context(), y)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), r)
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "MONTH\tEXPENSES\tFUEL\tMAINTENANCE\tOTHER")
				for _, m := range r.Months {
					fmt.Fprintf(tw, "%02d\t%s\t%s\t%s\t%s\n", m.Month, m.Expenses, m.Fuel, m.Maintenance, m.Other)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "total %s  distance %d  per unit %.2f\n",
					r.TotalExpenses, r.TotalMileage, r.CostPerDistance)
				for _, c := range r.TopExpenses {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", c.Category, c.Amount)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Calendar year (default: current year)")
	return cmd
}

func newUpcomingCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upcoming",
		Short: "List recurring charges due in the upcoming window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), app, func(e *env) error {
				items, err := e.reports.Upcoming(cmd.Context(), e.today)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), items)
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "DATE\tDESCRIPTION\tAMOUNT\tCADENCE")
				for _, re := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", re.NextDate, re.Description, re.Amount, re.Cadence)
				}
				return tw.Flush()
			})
		},
	}
}

func printSummary(cmd *cobra.Command, opts *rootOptions, s core.ExpenseSummary) error {
	if opts.json {
		return printJSON(cmd.OutOrStdout(), s)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s .. %s): %s\n", s.Label, s.Start, s.End, s.TotalAmount)
	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "CATEGORY\tAMOUNT\tSHARE")
	for _, c := range s.ByCategory {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\n", c.Category, c.Amount, c.Percentage)
	}
	return tw.Flush()
}

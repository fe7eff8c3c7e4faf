package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"carnote/internal/core"
)

func newServiceCmd(app *App, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Record completed maintenance",
	}

	var (
		date, cost, location, note string
		mileage                    int
	)
	add := &cobra.Command{
		Use:   "add <template-id>",
		Short: "Record a completed service for a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), app, func(e *env) error {
				d, err := parseDateFlag("date", date, e.today)
				if err != nil {
					return err
				}
				rec := core.ServiceRecord{
					TemplateID: args[0],
					Date:       d,
					Mileage:    mileage,
					Location:   location,
					Note:       note,
				}
				if cost != "" {
					m, err := core.ParseMoney(cost)
					if err != nil {
						return fmt.Errorf("--cost: %w", err)
					}
					rec.Cost = &m
				}
				saved, err := e.journal.AddServiceRecord(cmd.Context(), rec)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), saved)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service #%d %s on %s at %d\n",
					saved.ID, saved.TemplateID, saved.Date, saved.Mileage)
				return nil
			})
		},
	}
	add.Flags().StringVar(&date, "date", "", "Service date YYYY-MM-DD (default: today)")
	add.Flags().IntVar(&mileage, "mileage", 0, "Odometer reading")
	add.Flags().StringVar(&cost, "cost", "", "Cost, e.g. 1250.50")
	add.Flags().StringVar(&location, "location", "", "Workshop")
	add.Flags().StringVar(&note, "note", "", "Free-form note")
	_ = add.MarkFlagRequired("mileage")

	cmd.AddCommand(add)
	return cmd
}

func newFuelCmd(app *App, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fuel",
		Short: "Fill-ups and fuel statistics",
	}

	var (
		date, price, total, station, fuelType, note string
		mileage                                     int
		liters                                      float64
		partial                                     bool
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a fill-up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), app, func(e *env) error {
				d, err := parseDateFlag("date", date, e.today)
				if err != nil {
					return err
				}
				ppl, err := core.ParseMoney(price)
				if err != nil {
					return fmt.Errorf("--price: %w", err)
				}
				rec := core.FuelRecord{
					Date:          d,
					Mileage:       mileage,
					Liters:        liters,
					PricePerLiter: ppl,
					Station:       station,
					FuelType:      core.FuelType(fuelType),
					FullTank:      !partial,
					Note:          note,
				}
				if total != "" {
					if rec.TotalPrice, err = core.ParseMoney(total); err != nil {
						return fmt.Errorf("--total: %w", err)
					}
				}
				saved, err := e.fuel.AddFuelRecord(cmd.Context(), rec)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), saved)
				}
				consumption := "-"
				if saved.Consumption != nil {
					consumption = fmt.Sprintf("%.2f", *saved.Consumption)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "fill-up %s: %.2f l for %s, consumption %s\n",
					saved.Date, saved.Liters, saved.TotalPrice, consumption)
				return nil
			})
		},
	}
	add.Flags().StringVar(&date, "date", "", "Fill-up date YYYY-MM-DD (default: today)")
	add.Flags().IntVar(&mileage, "mileage", 0, "Odometer reading")
	add.Flags().Float64Var(&liters, "liters", 0, "Liters filled")
	add.Flags().StringVar(&price, "price", "", "Price per liter")
	add.Flags().StringVar(&total, "total", "", "Total paid (default: liters x price)")
	add.Flags().StringVar(&station, "station", "", "Station name")
	add.Flags().StringVar(&fuelType, "type", string(core.FuelA95), "Fuel type: A92, A95, A95+, Diesel, Gas")
	add.Flags().BoolVar(&partial, "partial", false, "Tank was not filled up")
	add.Flags().StringVar(&note, "note", "", "Free-form note")
	_ = add.MarkFlagRequired("mileage")
	_ = add.MarkFlagRequired("liters")
	_ = add.MarkFlagRequired("price")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show fuel statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), app, func(e *env) error {
				s, err := e.fuel.Statistics(cmd.Context())
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), s)
				}
				station := "-"
				if s.FavoriteStation != nil {
					station = *s.FavoriteStation
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintf(tw, "fill-ups\t%d\n", s.Count)
				fmt.Fprintf(tw, "avg consumption\t%.2f\n", s.AvgConsumption)
				fmt.Fprintf(tw, "best / worst\t%.2f / %.2f\n", s.BestConsumption, s.WorstConsumption)
				fmt.Fprintf(tw, "liters\t%.2f\n", s.TotalLiters)
				fmt.Fprintf(tw, "total cost\t%s\n", s.TotalCost)
				fmt.Fprintf(tw, "avg price\t%.2f\n", s.AvgPrice)
				fmt.Fprintf(tw, "cost per unit\t%.2f\n", s.CostPerDistance)
				fmt.Fprintf(tw, "favorite station\t%s\n", station)
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(add, stats)
	return cmd
}

func newExpenseCmd(app *App, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "One-off expenses and summaries",
	}

	var date, amount, category, description string
	add := &cobra.Command{
		Use:   "add",
		Short: "Record an expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), app, func(e *env) error {
				d, err := parseDateFlag("date", date, e.today)
				if err != nil {
					return err
				}
				m, err := core.ParseMoney(amount)
				if err != nil {
					return fmt.Errorf("--amount: %w", err)
				}
				saved, err := e.journal.AddExpense(cmd.Context(), core.Expense{
					Date:        d,
					Amount:      m,
					Category:    category,
					Description: description,
				})
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), saved)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expense %s: %s %s\n", saved.Date, saved.Amount, saved.Category)
				return nil
			})
		},
	}
	add.Flags().StringVar(&date, "date", "", "Expense date YYYY-MM-DD (default: today)")
	add.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 450.00")
	add.Flags().StringVar(&category, "category", "", "Category")
	add.Flags().StringVar(&description, "description", "", "Description")
	_ = add.MarkFlagRequired("amount")
	_ = add.MarkFlagRequired("category")

	var from, to, label string
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Summarise expenses by category (default: current month)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), app, func(e *env) error {
				monthStart := core.NewDate(e.today.Year(), e.today.Month(), 1)
				start, err := parseDateFlag("from", from, monthStart)
				if err != nil {
					return err
				}
				end, err := parseDateFlag("to", to, monthStart.AddMonths(1).AddDays(-1))
				if err != nil {
					return err
				}
				if start.After(end) {
					return fmt.Errorf("--from %s is after --to %s", start, end)
				}
				s, err := e.reports.Summary(cmd.Context(), start, end, label)
				if err != nil {
					return err
				}
				return printSummary(cmd, opts, s)
			})
		},
	}
	summary.Flags().StringVar(&from, "from", "", "First day YYYY-MM-DD")
	summary.Flags().StringVar(&to, "to", "", "Last day YYYY-MM-DD")
	summary.Flags().StringVar(&label, "label", "", "Period label")

	cmd.AddCommand(add, summary)
	return cmd
}

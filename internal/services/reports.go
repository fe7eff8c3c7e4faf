package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"carnote/internal/core"
	"carnote/internal/ports"
)

// DefaultSummaryLabel is used when a summary is requested without a label.
const DefaultSummaryLabel = "Период"

// DefaultMaintenanceTokens mark an expense category as maintenance.
var DefaultMaintenanceTokens = []string{"maint", "то"}

// DefaultUpcomingWindowDays is how far ahead recurring charges are listed.
const DefaultUpcomingWindowDays = 60

// categoryTotals sums amounts per category, keeping first-seen order in
// the result so that equal amounts sort deterministically.
func categoryTotals(expenses []core.Expense) []core.CategoryAmount {
	index := make(map[string]int)
	var out []core.CategoryAmount
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, core.CategoryAmount{Category: e.Category})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	return out
}

func withPercentages(cats []core.CategoryAmount, total core.Money) {
	for i := range cats {
		if total.Cents > 0 {
			cats[i].Percentage = float64(cats[i].Amount.Cents) / float64(total.Cents) * 100
		} else {
			cats[i].Percentage = 0
		}
	}
}

func sortByAmountDesc(cats []core.CategoryAmount) {
	sort.SliceStable(cats, func(i, j int) bool {
		return cats[i].Amount.Cents > cats[j].Amount.Cents
	})
}

// ExpenseSummary totals the vehicle's expenses dated within [start, end]
// and breaks them down by category, largest first.
func ExpenseSummary(expenses []core.Expense, vehicleID string, start, end core.Date, label string) core.ExpenseSummary {
	if label == "" {
		label = DefaultSummaryLabel
	}
	var window []core.Expense
	for _, e := range expenses {
		if e.VehicleID == vehicleID && e.Date.Between(start, end) {
			window = append(window, e)
		}
	}

	summary := core.ExpenseSummary{Label: label, Start: start, End: end}
	for _, e := range window {
		summary.TotalAmount = summary.TotalAmount.Add(e.Amount)
	}
	summary.ByCategory = categoryTotals(window)
	if summary.ByCategory == nil {
		summary.ByCategory = []core.CategoryAmount{}
	}
	withPercentages(summary.ByCategory, summary.TotalAmount)
	sortByAmountDesc(summary.ByCategory)
	return summary
}

// IsMaintenance reports whether category contains one of tokens, ignoring case.
func IsMaintenance(category string, tokens []string) bool {
	c := strings.ToLower(category)
	for _, tok := range tokens {
		if tok != "" && strings.Contains(c, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}

// fuelCost is the stored total, falling back to liters times price.
func fuelCost(f core.FuelRecord) core.Money {
	if !f.TotalPrice.IsZero() {
		return f.TotalPrice
	}
	return core.MoneyFromUnits(f.Liters * f.PricePerLiter.Units())
}

// YearlyReport buckets a calendar year of expenses and fuel into months.
// The top list holds at most five expense categories.
func YearlyReport(expenses []core.Expense, fuel []core.FuelRecord, vehicleID string, year int, tokens []string) core.YearlyReport {
	if tokens == nil {
		tokens = DefaultMaintenanceTokens
	}
	report := core.YearlyReport{Year: year, Months: make([]core.MonthlyData, 12)}
	for i := range report.Months {
		report.Months[i].Month = i + 1
	}

	var yearExpenses []core.Expense
	var expenseTotal core.Money
	for _, e := range expenses {
		if e.VehicleID != vehicleID || e.Date.Year() != year {
			continue
		}
		yearExpenses = append(yearExpenses, e)
		expenseTotal = expenseTotal.Add(e.Amount)
		m := &report.Months[e.Date.Month()-1]
		m.Expenses = m.Expenses.Add(e.Amount)
		if IsMaintenance(e.Category, tokens) {
			m.Maintenance = m.Maintenance.Add(e.Amount)
		} else {
			m.Other = m.Other.Add(e.Amount)
		}
	}

	var yearFuel []core.FuelRecord
	for _, f := range fuel {
		if f.VehicleID != vehicleID || f.Date.Year() != year {
			continue
		}
		yearFuel = append(yearFuel, f)
		m := &report.Months[f.Date.Month()-1]
		m.Fuel = m.Fuel.Add(fuelCost(f))
	}

	for _, m := range report.Months {
		report.TotalExpenses = report.TotalExpenses.Add(m.Expenses).Add(m.Fuel)
	}
	report.TotalMileage = mileageSpan(yearFuel)
	if report.TotalMileage > 0 {
		report.CostPerDistance = report.TotalExpenses.Units() / float64(report.TotalMileage)
	}

	top := categoryTotals(yearExpenses)
	withPercentages(top, expenseTotal)
	sortByAmountDesc(top)
	if len(top) > 5 {
		top = top[:5]
	}
	if top == nil {
		top = []core.CategoryAmount{}
	}
	report.TopExpenses = top
	return report
}

// UpcomingRecurring lists the vehicle's recurring charges due within
// [today, today+windowDays], soonest first.
func UpcomingRecurring(recurring []core.RecurringExpense, vehicleID string, today core.Date, windowDays int) []core.RecurringExpense {
	end := today.AddDays(windowDays)
	out := make([]core.RecurringExpense, 0)
	for _, re := range recurring {
		if re.VehicleID == vehicleID && re.NextDate.Between(today, end) {
			out = append(out, re)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NextDate.Before(out[j].NextDate)
	})
	return out
}

// ReportService loads journal data and runs the aggregations.
type ReportService struct {
	repo              ports.Repository
	vehicleID         string
	maintenanceTokens []string
	upcomingDays      int
}

func NewReportService(repo ports.Repository, vehicleID string, maintenanceTokens []string, upcomingDays int) *ReportService {
	if len(maintenanceTokens) == 0 {
		maintenanceTokens = DefaultMaintenanceTokens
	}
	if upcomingDays <= 0 {
		upcomingDays = DefaultUpcomingWindowDays
	}
	return &ReportService{
		repo:              repo,
		vehicleID:         vehicleID,
		maintenanceTokens: maintenanceTokens,
		upcomingDays:      upcomingDays,
	}
}

// ListExpenses returns the vehicle's expenses, newest first.
func (s *ReportService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	items, err := s.repo.ListExpenses(ctx, s.vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
	return items, nil
}

func (s *ReportService) Summary(ctx context.Context, start, end core.Date, label string) (core.ExpenseSummary, error) {
	items, err := s.repo.ListExpenses(ctx, s.vehicleID)
	if err != nil {
		return core.ExpenseSummary{}, fmt.Errorf("list expenses: %w", err)
	}
	return ExpenseSummary(items, s.vehicleID, start, end, label), nil
}

func (s *ReportService) Yearly(ctx context.Context, year int) (core.YearlyReport, error) {
	var (
		expenses []core.Expense
		fuel     []core.FuelRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if expenses, err = s.repo.ListExpenses(gctx, s.vehicleID); err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if fuel, err = s.repo.ListFuelRecords(gctx, s.vehicleID); err != nil {
			return fmt.Errorf("list fuel records: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.YearlyReport{}, err
	}
	return YearlyReport(expenses, fuel, s.vehicleID, year, s.maintenanceTokens), nil
}

func (s *ReportService) Upcoming(ctx context.Context, today core.Date) ([]core.RecurringExpense, error) {
	items, err := s.repo.ListRecurring(ctx, s.vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	return UpcomingRecurring(items, s.vehicleID, today, s.upcomingDays), nil
}

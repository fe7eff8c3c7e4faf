package services

import (
	"context"
	"fmt"
	"log/slog"

	"carnote/internal/core"
	"carnote/internal/ports"
)

// DefaultRecurringCategory is the expense category of posted charges that
// carry no category of their own.
const DefaultRecurringCategory = "Регулярные"

// RecurringProcessor turns due recurring charges into expenses
type RecurringProcessor struct {
	repo      ports.Repository
	journal   *JournalService
	vehicleID string
}

// NewRecurringProcessor creates a new recurring charge processor
func NewRecurringProcessor(repo ports.Repository, journal *JournalService, vehicleID string) *RecurringProcessor {
	return &RecurringProcessor{
		repo:      repo,
		journal:   journal,
		vehicleID: vehicleID,
	}
}

// ProcessDue posts one expense per missed occurrence of every charge whose
// next date is on or before today, then moves the next date past today.
// It returns the number of expenses created.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, today core.Date) (int, error) {
	if p.repo == nil || p.journal == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	items, err := p.repo.ListRecurring(ctx, p.vehicleID)
	if err != nil {
		return 0, fmt.Errorf("failed to list recurring expenses: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring expenses",
		"total", len(items),
		"processing_date", today.String())

	processedCount := 0
	for _, re := range items {
		if re.NextDate.After(today) {
			continue
		}
		stepper, err := GetCadenceStepper(re.Cadence)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping recurring expense",
				"recurring_id", re.ID,
				"error", err)
			continue
		}

		if re.AnchorDay == 0 {
			re.AnchorDay = re.NextDate.Day()
		}
		due, following := DueOccurrences(stepper, re.NextDate, re.AnchorDay, today)
		posted := 0
		for _, d := range due {
			category := re.Category
			if category == "" {
				category = DefaultRecurringCategory
			}
			_, err := p.journal.AddExpense(ctx, core.Expense{
				VehicleID:   re.VehicleID,
				Date:        d,
				Amount:      re.Amount,
				Category:    category,
				Description: re.Description,
				RecurringID: re.ID,
			})
			if err != nil {
				slog.ErrorContext(ctx, "Failed to create expense from recurring charge",
					"recurring_id", re.ID,
					"date", d.String(),
					"error", err)
				break
			}
			posted++
		}
		processedCount += posted
		if posted == 0 {
			continue
		}

		// on a partial failure resume from the first occurrence not posted
		if posted < len(due) {
			following = due[posted]
		}
		re.NextDate = following
		if err := p.repo.SaveRecurring(ctx, re); err != nil {
			slog.ErrorContext(ctx, "Failed to advance recurring expense",
				"recurring_id", re.ID,
				"error", err)
			continue
		}

		slog.InfoContext(ctx, "Posted recurring expense",
			"recurring_id", re.ID,
			"description", re.Description,
			"occurrences", posted,
			"amount_cents", re.Amount.Cents,
			"cadence", re.Cadence,
			"next_date", re.NextDate.String())
	}

	slog.InfoContext(ctx, "Recurring expense processing complete",
		"processed", processedCount,
		"total_checked", len(items))

	return processedCount, nil
}

package services

import (
	"context"
	"reflect"
	"testing"

	"carnote/internal/core"
)

func TestGetCadenceStepper(t *testing.T) {
	tests := []struct {
		name    string
		cadence core.Cadence
		from    core.Date
		want    core.Date
		wantErr bool
	}{
		{"monthly", core.Monthly, core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 29), false},
		{"quarterly", core.Quarterly, core.NewDate(2024, 11, 15), core.NewDate(2025, 2, 15), false},
		{"yearly", core.Yearly, core.NewDate(2024, 2, 29), core.NewDate(2025, 2, 28), false},
		{"unknown", core.Cadence("WEEKLY"), core.Date{}, core.Date{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stepper, err := GetCadenceStepper(tt.cadence)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetCadenceStepper() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := stepper.Next(tt.from, 0); !got.Equal(tt.want.Time) {
				t.Errorf("Next(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestRegisterCadenceStepper(t *testing.T) {
	custom := core.Cadence("SEMIANNUAL")
	RegisterCadenceStepper(custom, MonthStepper{Months: 6})
	defer delete(cadenceStrategies, custom)

	stepper, err := GetCadenceStepper(custom)
	if err != nil {
		t.Fatalf("GetCadenceStepper() after register error = %v", err)
	}
	if got := stepper.Next(core.NewDate(2024, 1, 1), 0); got.String() != "2024-07-01" {
		t.Errorf("Next() = %v, want 2024-07-01", got)
	}
}

func TestDueOccurrences(t *testing.T) {
	due, following := DueOccurrences(MonthStepper{Months: 1}, core.NewDate(2024, 1, 10), 0, core.NewDate(2024, 3, 10))
	if len(due) != 3 || due[0].String() != "2024-01-10" || due[2].String() != "2024-03-10" {
		t.Errorf("due = %v", due)
	}
	if following.String() != "2024-04-10" {
		t.Errorf("following = %v, want 2024-04-10", following)
	}

	due, following = DueOccurrences(MonthStepper{Months: 1}, core.NewDate(2024, 5, 1), 0, core.NewDate(2024, 3, 10))
	if len(due) != 0 || following.String() != "2024-05-01" {
		t.Errorf("future charge: due = %v, following = %v", due, following)
	}

	due, _ = DueOccurrences(MonthStepper{Months: 0}, core.NewDate(2024, 1, 1), 1, core.NewDate(2024, 3, 1))
	if len(due) != 1 {
		t.Errorf("non-advancing stepper should stop after one occurrence, got %d", len(due))
	}
}

func TestDueOccurrences_KeepsAnchorDay(t *testing.T) {
	tests := []struct {
		name          string
		stepper       MonthStepper
		next          core.Date
		anchor        int
		today         core.Date
		wantDue       []string
		wantFollowing string
	}{
		{
			name:          "end of month survives february",
			stepper:       MonthStepper{Months: 1},
			next:          core.NewDate(2024, 1, 31),
			anchor:        31,
			today:         core.NewDate(2024, 4, 15),
			wantDue:       []string{"2024-01-31", "2024-02-29", "2024-03-31"},
			wantFollowing: "2024-04-30",
		},
		{
			name:          "resumes from a clamped next date",
			stepper:       MonthStepper{Months: 1},
			next:          core.NewDate(2024, 2, 29),
			anchor:        31,
			today:         core.NewDate(2024, 3, 31),
			wantDue:       []string{"2024-02-29", "2024-03-31"},
			wantFollowing: "2024-04-30",
		},
		{
			name:          "quarterly from the 30th",
			stepper:       MonthStepper{Months: 3},
			next:          core.NewDate(2023, 11, 30),
			anchor:        30,
			today:         core.NewDate(2024, 5, 30),
			wantDue:       []string{"2023-11-30", "2024-02-29", "2024-05-30"},
			wantFollowing: "2024-08-30",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, following := DueOccurrences(tt.stepper, tt.next, tt.anchor, tt.today)
			got := make([]string, len(due))
			for i, d := range due {
				got[i] = d.String()
			}
			if !reflect.DeepEqual(got, tt.wantDue) {
				t.Errorf("due = %v, want %v", got, tt.wantDue)
			}
			if following.String() != tt.wantFollowing {
				t.Errorf("following = %v, want %v", following, tt.wantFollowing)
			}
		})
	}
}

func TestRecurringProcessor_AnchorDayAcrossRuns(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	journal := NewJournalService(repo, nil, "v")

	saved, err := journal.SaveRecurring(ctx, core.RecurringExpense{
		ID: "rent", Description: "Гараж", Amount: core.Money{Cents: 100000}, Cadence: core.Monthly, NextDate: core.NewDate(2024, 1, 31),
	})
	if err != nil {
		t.Fatalf("SaveRecurring() error = %v", err)
	}
	if saved.AnchorDay != 31 {
		t.Errorf("AnchorDay = %d, want 31", saved.AnchorDay)
	}

	proc := NewRecurringProcessor(repo, journal, "v")
	for _, today := range []core.Date{core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 29), core.NewDate(2024, 3, 31)} {
		if n, err := proc.ProcessDue(ctx, today); err != nil || n != 1 {
			t.Fatalf("ProcessDue(%v) = %d, %v, want 1", today, n, err)
		}
	}

	items, _ := repo.ListRecurring(ctx, "v")
	if len(items) != 1 || items[0].NextDate.String() != "2024-04-30" {
		t.Errorf("NextDate = %v, want 2024-04-30", items)
	}
}

func TestRecurringProcessor_ProcessDue(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	pub := &recordingPublisher{}
	journal := NewJournalService(repo, pub, "v")

	for _, re := range []core.RecurringExpense{
		{ID: "ins", Description: "Страховка", Amount: core.Money{Cents: 120000}, Cadence: core.Yearly, NextDate: core.NewDate(2024, 7, 1), Category: "Страховка"},
		{ID: "park", Description: "Парковка", Amount: core.Money{Cents: 50000}, Cadence: core.Monthly, NextDate: core.NewDate(2024, 5, 15)},
		{ID: "future", Description: "Налог", Amount: core.Money{Cents: 1000}, Cadence: core.Quarterly, NextDate: core.NewDate(2024, 9, 1)},
	} {
		if _, err := journal.SaveRecurring(ctx, re); err != nil {
			t.Fatalf("SaveRecurring() error = %v", err)
		}
	}

	proc := NewRecurringProcessor(repo, journal, "v")
	n, err := proc.ProcessDue(ctx, core.NewDate(2024, 7, 20))
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	// one yearly + May, June, July parking
	if n != 4 {
		t.Errorf("ProcessDue() = %d, want 4", n)
	}

	expenses, _ := repo.ListExpenses(ctx, "v")
	if len(expenses) != 4 {
		t.Fatalf("expenses = %d, want 4", len(expenses))
	}
	byRecurring := map[string]int{}
	for _, e := range expenses {
		byRecurring[e.RecurringID]++
		if e.RecurringID == "park" && e.Category != DefaultRecurringCategory {
			t.Errorf("category = %q, want default", e.Category)
		}
	}
	if byRecurring["ins"] != 1 || byRecurring["park"] != 3 {
		t.Errorf("posted per charge = %v", byRecurring)
	}

	items, _ := repo.ListRecurring(ctx, "v")
	next := map[string]string{}
	for _, re := range items {
		next[re.ID] = re.NextDate.String()
	}
	if next["ins"] != "2025-07-01" || next["park"] != "2024-08-15" || next["future"] != "2024-09-01" {
		t.Errorf("next dates = %v", next)
	}
	if len(pub.syncs) != 4 {
		t.Errorf("published %d sync messages, want 4", len(pub.syncs))
	}

	// running again the same day posts nothing
	n, err = proc.ProcessDue(ctx, core.NewDate(2024, 7, 20))
	if err != nil || n != 0 {
		t.Errorf("second ProcessDue() = %d, %v, want 0", n, err)
	}
}

func TestRecurringProcessor_NotInitialized(t *testing.T) {
	proc := NewRecurringProcessor(nil, nil, "v")
	if _, err := proc.ProcessDue(context.Background(), core.NewDate(2024, 1, 1)); err == nil {
		t.Error("ProcessDue() should fail without a repository")
	}
}

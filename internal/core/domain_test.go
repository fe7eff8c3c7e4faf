package core

import (
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		VehicleID: "note-01",
		Date:      NewDate(2025, 1, 1),
		Amount:    Money{Cents: 100},
		Category:  "ТО",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{VehicleID: "v", Date: Date{}, Amount: Money{Cents: 1}, Category: "c"},
		{VehicleID: "", Date: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Category: "c"},
		{VehicleID: "v", Date: NewDate(2025, 1, 1), Amount: Money{Cents: 0}, Category: "c"},
		{VehicleID: "v", Date: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Category: "  "},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestFuelRecordValidate(t *testing.T) {
	good := FuelRecord{
		VehicleID:     "v",
		Date:          NewDate(2024, 5, 1),
		Mileage:       10000,
		Liters:        40,
		PricePerLiter: Money{Cents: 5599},
		FuelType:      FuelA95,
		FullTank:      true,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	noLiters := good
	noLiters.Liters = 0
	badType := good
	badType.FuelType = "A100"
	negPrev := good
	negPrev.PreviousMileage = IntPtr(-1)

	tests := []struct {
		name string
		rec  FuelRecord
		want error
	}{
		{"zero liters", noLiters, ErrInvalidLiters},
		{"unknown fuel", badType, ErrInvalidFuelType},
		{"negative previous", negPrev, ErrInvalidMileage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.rec.Validate(); err != tt.want {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRecurringExpenseValidate(t *testing.T) {
	re := RecurringExpense{
		VehicleID:   "v",
		Description: "Страховка",
		Amount:      Money{Cents: 120000},
		Cadence:     Yearly,
		NextDate:    NewDate(2024, 9, 1),
	}
	if err := re.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	re.Cadence = "WEEKLY"
	if err := re.Validate(); err != ErrInvalidCadence {
		t.Errorf("Validate() = %v, want %v", err, ErrInvalidCadence)
	}
}

func TestTemplateAndPartValidate(t *testing.T) {
	tpl := MaintenanceTemplate{ID: "oil", Title: "Масло", IntervalMonths: IntPtr(-1), UnitDistance: Miles}
	if err := tpl.Validate(); err != ErrInvalidInterval {
		t.Errorf("Validate() = %v, want %v", err, ErrInvalidInterval)
	}
	part := PartLink{TemplateID: "oil", Title: "Filter", URL: "https://example.com", Status: "lost"}
	if err := part.Validate(); err != ErrInvalidPartStatus {
		t.Errorf("Validate() = %v, want %v", err, ErrInvalidPartStatus)
	}
}

func TestStatusPriority(t *testing.T) {
	if !(StatusOverdue.Priority() < StatusSoon.Priority() && StatusSoon.Priority() < StatusOK.Priority()) {
		t.Fatalf("unexpected priority order")
	}
}

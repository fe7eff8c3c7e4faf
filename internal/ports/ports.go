// Package ports declares the storage and messaging contracts the services
// depend on. Implementations live in internal/storage, internal/storage/memory
// and internal/amqp.
package ports

import (
	"context"
	"errors"
	"time"

	"carnote/internal/core"
)

// ErrNotFound is returned by readers when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// JournalKind names the journal tables mirrored to the spreadsheet.
type JournalKind string

const (
	KindExpense JournalKind = "expense"
	KindFuel    JournalKind = "fuel"
	KindService JournalKind = "service"
)

func (k JournalKind) Valid() bool {
	switch k {
	case KindExpense, KindFuel, KindService:
		return true
	}
	return false
}

// JournalRef points at a single journal row. Service record ids are decimal strings.
type JournalRef struct {
	Kind JournalKind `json:"kind"`
	ID   string      `json:"id"`
}

// Snapshot is the raw content of every table, as written by export.
type Snapshot struct {
	Vehicles    []core.Vehicle             `json:"vehicles,omitempty"`
	Templates   []core.MaintenanceTemplate `json:"templates,omitempty"`
	Records     []core.ServiceRecord       `json:"records,omitempty"`
	PartLinks   []core.PartLink            `json:"partLinks,omitempty"`
	FuelRecords []core.FuelRecord          `json:"fuelRecords,omitempty"`
	Expenses    []core.Expense             `json:"expenses,omitempty"`
	Recurring   []core.RecurringExpense    `json:"recurring,omitempty"`
}

// Tables selects which tables a Replace call rewrites.
type Tables struct {
	Vehicles, Templates, Records, PartLinks, FuelRecords, Expenses, Recurring bool
}

// AllTables marks every table for replacement.
func AllTables() Tables {
	return Tables{true, true, true, true, true, true, true}
}

// Names lists the selected tables by their document key.
func (t Tables) Names() []string {
	out := make([]string, 0, 7)
	for _, tbl := range []struct {
		on   bool
		name string
	}{
		{t.Vehicles, "vehicles"},
		{t.Templates, "templates"},
		{t.Records, "records"},
		{t.PartLinks, "partLinks"},
		{t.FuelRecords, "fuelRecords"},
		{t.Expenses, "expenses"},
		{t.Recurring, "recurring"},
	} {
		if tbl.on {
			out = append(out, tbl.name)
		}
	}
	return out
}

type (
	VehicleStore interface {
		GetVehicle(ctx context.Context, id string) (core.Vehicle, error)
		SaveVehicle(ctx context.Context, v core.Vehicle) error
		UpdateVehicleMileage(ctx context.Context, id string, mileage int) error
	}

	TemplateReader interface {
		GetTemplates(ctx context.Context) ([]core.MaintenanceTemplate, error)
		GetTemplate(ctx context.Context, id string) (core.MaintenanceTemplate, error)
	}

	ServiceRecordStore interface {
		ListServiceRecords(ctx context.Context, vehicleID string) ([]core.ServiceRecord, error)
		GetServiceRecord(ctx context.Context, id int64) (core.ServiceRecord, error)
		// AddServiceRecord stores r and returns the assigned id.
		AddServiceRecord(ctx context.Context, r core.ServiceRecord) (int64, error)
	}

	FuelStore interface {
		ListFuelRecords(ctx context.Context, vehicleID string) ([]core.FuelRecord, error)
		GetFuelRecord(ctx context.Context, id string) (core.FuelRecord, error)
		AddFuelRecord(ctx context.Context, r core.FuelRecord) error
	}

	ExpenseStore interface {
		ListExpenses(ctx context.Context, vehicleID string) ([]core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		AddExpense(ctx context.Context, e core.Expense) error
	}

	RecurringStore interface {
		ListRecurring(ctx context.Context, vehicleID string) ([]core.RecurringExpense, error)
		// SaveRecurring inserts re or replaces the row with the same id.
		SaveRecurring(ctx context.Context, re core.RecurringExpense) error
	}

	PartStore interface {
		// ListPartLinks lists parts of templateID, or all parts when templateID is empty.
		ListPartLinks(ctx context.Context, templateID string) ([]core.PartLink, error)
		AddPartLink(ctx context.Context, p core.PartLink) error
		UpdatePartStatus(ctx context.Context, id string, status core.PartStatus) error
	}

	Snapshotter interface {
		Dump(ctx context.Context) (Snapshot, error)
		// Replace clears the selected tables and loads them from s atomically.
		Replace(ctx context.Context, s Snapshot, tables Tables) error
	}

	SyncTracker interface {
		// ListPendingSync returns journal rows not yet mirrored, oldest first.
		ListPendingSync(ctx context.Context, limit int) ([]JournalRef, error)
		IsSynced(ctx context.Context, ref JournalRef) (bool, error)
		MarkSynced(ctx context.Context, ref JournalRef, at time.Time) error
	}

	// Repository is the full store used by the services.
	Repository interface {
		VehicleStore
		TemplateReader
		ServiceRecordStore
		FuelStore
		ExpenseStore
		RecurringStore
		PartStore
		Snapshotter
		SyncTracker
		Close() error
	}

	// EventPublisher fans out journal changes and maintenance reminders.
	EventPublisher interface {
		PublishJournalSync(ctx context.Context, ref JournalRef) error
		PublishReminder(ctx context.Context, vehicleID string, row core.TemplateStatus) error
	}

	// JournalMirror appends journal rows to an external sheet.
	JournalMirror interface {
		AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
		AppendFuel(ctx context.Context, f core.FuelRecord) (rowRef string, err error)
		AppendService(ctx context.Context, r core.ServiceRecord, templateTitle string) (rowRef string, err error)
	}
)

// Package exchange reads and writes the JSON backup document: every table
// of the repository as a top-level array.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"carnote/internal/core"
	"carnote/internal/ports"
)

// ErrInvalidDocument wraps every rejection of an import document.
var ErrInvalidDocument = errors.New("invalid import document")

// Document is the export layout. ExportedAt is informational.
type Document struct {
	ExportedAt time.Time `json:"exportedAt"`
	ports.Snapshot
}

// Export writes every table as indented JSON.
func Export(ctx context.Context, repo ports.Snapshotter, w io.Writer) error {
	snap, err := repo.Dump(ctx)
	if err != nil {
		return fmt.Errorf("dump repository: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(exportView(snap, time.Now().UTC())); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	slog.InfoContext(ctx, "Exported journal",
		"records", len(snap.Records),
		"fuel_records", len(snap.FuelRecords),
		"expenses", len(snap.Expenses))
	return nil
}

// exportView is Document with every table always present, so an export
// of an empty table round-trips as an empty table.
func exportView(s ports.Snapshot, at time.Time) any {
	return struct {
		ExportedAt  time.Time                  `json:"exportedAt"`
		Vehicles    []core.Vehicle             `json:"vehicles"`
		Templates   []core.MaintenanceTemplate `json:"templates"`
		Records     []core.ServiceRecord       `json:"records"`
		PartLinks   []core.PartLink            `json:"partLinks"`
		FuelRecords []core.FuelRecord          `json:"fuelRecords"`
		Expenses    []core.Expense             `json:"expenses"`
		Recurring   []core.RecurringExpense    `json:"recurring"`
	}{
		ExportedAt:  at,
		Vehicles:    nonNil(s.Vehicles),
		Templates:   nonNil(s.Templates),
		Records:     nonNil(s.Records),
		PartLinks:   nonNil(s.PartLinks),
		FuelRecords: nonNil(s.FuelRecords),
		Expenses:    nonNil(s.Expenses),
		Recurring:   nonNil(s.Recurring),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Import replaces every table present in the document. Tables the document
// omits are left untouched. Nothing is written unless the whole document is valid.
func Import(ctx context.Context, repo ports.Snapshotter, r io.Reader) (ports.Tables, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ports.Tables{}, fmt.Errorf("read import: %w", err)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return ports.Tables{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return ports.Tables{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	tables := PresentTables(keys)
	if tables == (ports.Tables{}) {
		return tables, fmt.Errorf("%w: no tables", ErrInvalidDocument)
	}
	// status is optional in older exports
	for i := range doc.PartLinks {
		if doc.PartLinks[i].Status == "" {
			doc.PartLinks[i].Status = core.PartNeeded
		}
	}
	if err := validate(doc.Snapshot, tables); err != nil {
		return ports.Tables{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if err := repo.Replace(ctx, doc.Snapshot, tables); err != nil {
		return ports.Tables{}, fmt.Errorf("replace tables: %w", err)
	}

	slog.InfoContext(ctx, "Imported journal",
		"records", len(doc.Records),
		"fuel_records", len(doc.FuelRecords),
		"expenses", len(doc.Expenses))
	return tables, nil
}

// PresentTables reports which table keys exist with a non-null value.
func PresentTables(keys map[string]json.RawMessage) ports.Tables {
	has := func(k string) bool {
		v, ok := keys[k]
		return ok && string(v) != "null"
	}
	return ports.Tables{
		Vehicles:    has("vehicles"),
		Templates:   has("templates"),
		Records:     has("records"),
		PartLinks:   has("partLinks"),
		FuelRecords: has("fuelRecords"),
		Expenses:    has("expenses"),
		Recurring:   has("recurring"),
	}
}

func validate(s ports.Snapshot, t ports.Tables) error {
	var errs []error
	check := func(table string, i int, id string, err error) {
		if id == "" {
			errs = append(errs, fmt.Errorf("%s[%d]: missing id", table, i))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s[%d]: %w", table, i, err))
		}
	}

	if t.Vehicles {
		for i, v := range s.Vehicles {
			check("vehicles", i, v.ID, v.Validate())
		}
	}
	if t.Templates {
		seen := make(map[string]bool, len(s.Templates))
		for i, tpl := range s.Templates {
			check("templates", i, tpl.ID, tpl.Validate())
			if seen[tpl.ID] {
				errs = append(errs, fmt.Errorf("templates[%d]: duplicate id %q", i, tpl.ID))
			}
			seen[tpl.ID] = true
		}
	}
	if t.Records {
		for i, r := range s.Records {
			id := ""
			if r.ID > 0 {
				id = fmt.Sprint(r.ID)
			}
			check("records", i, id, r.Validate())
		}
	}
	if t.PartLinks {
		for i, p := range s.PartLinks {
			check("partLinks", i, p.ID, p.Validate())
		}
	}
	if t.FuelRecords {
		for i, f := range s.FuelRecords {
			check("fuelRecords", i, f.ID, f.Validate())
		}
	}
	if t.Expenses {
		for i, e := range s.Expenses {
			check("expenses", i, e.ID, e.Validate())
		}
	}
	if t.Recurring {
		for i, re := range s.Recurring {
			check("recurring", i, re.ID, re.Validate())
		}
	}
	return errors.Join(errs...)
}

package storage

import (
	"context"
	"fmt"
	"log/slog"

	"carnote/internal/ports"
)

// Dump reads every table for export.
func (r *SQLiteRepository) Dump(ctx context.Context) (ports.Snapshot, error) {
	var (
		s   ports.Snapshot
		err error
	)
	if s.Vehicles, err = listVehicles(ctx, r.db); err != nil {
		return ports.Snapshot{}, err
	}
	if s.Templates, err = listTemplates(ctx, r.db); err != nil {
		return ports.Snapshot{}, err
	}
	if s.Records, err = listServiceRecords(ctx, r.db, ""); err != nil {
		return ports.Snapshot{}, err
	}
	if s.PartLinks, err = listPartLinks(ctx, r.db, ""); err != nil {
		return ports.Snapshot{}, err
	}
	if s.FuelRecords, err = listFuelRecords(ctx, r.db, ""); err != nil {
		return ports.Snapshot{}, err
	}
	if s.Expenses, err = listExpenses(ctx, r.db, ""); err != nil {
		return ports.Snapshot{}, err
	}
	if s.Recurring, err = listRecurring(ctx, r.db, ""); err != nil {
		return ports.Snapshot{}, err
	}
	return s, nil
}

// Replace rewrites the selected tables inside one transaction. Imported
// journal rows are stamped as synced so they are not mirrored again.
func (r *SQLiteRepository) Replace(ctx context.Context, s ports.Snapshot, t ports.Tables) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now().UTC().UnixNano()

	clearTable := func(table string) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
		return nil
	}

	if t.Vehicles {
		if err := clearTable("vehicles"); err != nil {
			return err
		}
		for _, v := range s.Vehicles {
			if err := insertVehicle(ctx, tx, v); err != nil {
				return err
			}
		}
	}
	if t.Templates {
		if err := clearTable("maintenance_templates"); err != nil {
			return err
		}
		for i, tpl := range s.Templates {
			if err := insertTemplate(ctx, tx, tpl, i); err != nil {
				return err
			}
		}
	}
	if t.Records {
		if err := clearTable("service_records"); err != nil {
			return err
		}
		for _, rec := range s.Records {
			if rec.AddedAt.IsZero() {
				rec.AddedAt = r.now().UTC()
			}
			if err := insertServiceRecordWithID(ctx, tx, rec, now); err != nil {
				return err
			}
		}
	}
	if t.PartLinks {
		if err := clearTable("part_links"); err != nil {
			return err
		}
		for _, p := range s.PartLinks {
			if err := insertPartLink(ctx, tx, p); err != nil {
				return err
			}
		}
	}
	if t.FuelRecords {
		if err := clearTable("fuel_records"); err != nil {
			return err
		}
		for i, f := range s.FuelRecords {
			if err := insertFuelRecord(ctx, tx, f, now+int64(i), now); err != nil {
				return err
			}
		}
	}
	if t.Expenses {
		if err := clearTable("expenses"); err != nil {
			return err
		}
		for i, e := range s.Expenses {
			if err := insertExpense(ctx, tx, e, now+int64(i), now); err != nil {
				return err
			}
		}
	}
	if t.Recurring {
		if err := clearTable("recurring_expenses"); err != nil {
			return err
		}
		for _, re := range s.Recurring {
			if err := upsertRecurring(ctx, tx, re); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot imported into SQLite",
		"vehicles", len(s.Vehicles),
		"templates", len(s.Templates),
		"records", len(s.Records),
		"fuel_records", len(s.FuelRecords),
		"expenses", len(s.Expenses),
		"recurring", len(s.Recurring))
	return nil
}

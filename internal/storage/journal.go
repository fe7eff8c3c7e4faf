package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"carnote/internal/core"
	"carnote/internal/ports"
)

const serviceRecordColumns = `id, vehicle_id, template_id, date, mileage, cost_cents, location, note, receipt_url, added_at`

func (r *SQLiteRepository) ListServiceRecords(ctx context.Context, vehicleID string) ([]core.ServiceRecord, error) {
	return listServiceRecords(ctx, r.db, `WHERE vehicle_id = ?`, vehicleID)
}

func (r *SQLiteRepository) GetServiceRecord(ctx context.Context, id int64) (core.ServiceRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+serviceRecordColumns+` FROM service_records WHERE id = ?`, id)
	rec, err := scanServiceRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ServiceRecord{}, fmt.Errorf("service record %d: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return core.ServiceRecord{}, fmt.Errorf("get service record: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) AddServiceRecord(ctx context.Context, rec core.ServiceRecord) (int64, error) {
	if rec.AddedAt.IsZero() {
		rec.AddedAt = r.now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO service_records (vehicle_id, template_id, date, mileage, cost_cents, location, note, receipt_url, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VehicleID, rec.TemplateID, rec.Date, rec.Mileage, nullMoney(rec.Cost),
		rec.Location, rec.Note, rec.ReceiptURL, rec.AddedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert service record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("service record id: %w", err)
	}

	slog.InfoContext(ctx, "Service record saved to SQLite",
		"id", id,
		"template_id", rec.TemplateID,
		"date", rec.Date.String(),
		"mileage", rec.Mileage)
	return id, nil
}

func insertServiceRecordWithID(ctx context.Context, db dbtx, rec core.ServiceRecord, syncedAt int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO service_records (`+serviceRecordColumns+`, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.VehicleID, rec.TemplateID, rec.Date, rec.Mileage, nullMoney(rec.Cost),
		rec.Location, rec.Note, rec.ReceiptURL, rec.AddedAt.UnixNano(), syncedAt)
	if err != nil {
		return fmt.Errorf("insert service record %d: %w", rec.ID, err)
	}
	return nil
}

func scanServiceRecord(s scanner) (core.ServiceRecord, error) {
	var (
		rec     core.ServiceRecord
		cost    sql.NullInt64
		addedAt int64
	)
	if err := s.Scan(&rec.ID, &rec.VehicleID, &rec.TemplateID, &rec.Date, &rec.Mileage, &cost,
		&rec.Location, &rec.Note, &rec.ReceiptURL, &addedAt); err != nil {
		return core.ServiceRecord{}, err
	}
	rec.Cost = moneyPtr(cost)
	rec.AddedAt = unixNano(addedAt)
	return rec, nil
}

func listServiceRecords(ctx context.Context, db dbtx, where string, args ...any) ([]core.ServiceRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+serviceRecordColumns+` FROM service_records `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list service records: %w", err)
	}
	defer rows.Close()

	out := make([]core.ServiceRecord, 0)
	for rows.Next() {
		rec, err := scanServiceRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const fuelColumns = `id, vehicle_id, date, mileage, previous_mileage, liters, price_per_liter_cents,
	total_price_cents, station, fuel_type, full_tank, consumption, note`

func (r *SQLiteRepository) ListFuelRecords(ctx context.Context, vehicleID string) ([]core.FuelRecord, error) {
	return listFuelRecords(ctx, r.db, `WHERE vehicle_id = ?`, vehicleID)
}

func (r *SQLiteRepository) GetFuelRecord(ctx context.Context, id string) (core.FuelRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fuelColumns+` FROM fuel_records WHERE id = ?`, id)
	f, err := scanFuelRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FuelRecord{}, fmt.Errorf("fuel record %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return core.FuelRecord{}, fmt.Errorf("get fuel record: %w", err)
	}
	return f, nil
}

func (r *SQLiteRepository) AddFuelRecord(ctx context.Context, f core.FuelRecord) error {
	if err := insertFuelRecord(ctx, r.db, f, r.now().UnixNano(), nil); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Fuel record saved to SQLite",
		"id", f.ID,
		"mileage", f.Mileage,
		"liters", f.Liters)
	return nil
}

func insertFuelRecord(ctx context.Context, db dbtx, f core.FuelRecord, createdAt int64, syncedAt any) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO fuel_records (`+fuelColumns+`, created_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.VehicleID, f.Date, f.Mileage, nullInt(f.PreviousMileage), f.Liters, f.PricePerLiter,
		f.TotalPrice, f.Station, string(f.FuelType), f.FullTank, nullFloat(f.Consumption), f.Note,
		createdAt, syncedAt)
	if err != nil {
		return fmt.Errorf("insert fuel record %s: %w", f.ID, err)
	}
	return nil
}

func scanFuelRecord(s scanner) (core.FuelRecord, error) {
	var (
		f           core.FuelRecord
		prev        sql.NullInt64
		consumption sql.NullFloat64
		fuelType    string
	)
	if err := s.Scan(&f.ID, &f.VehicleID, &f.Date, &f.Mileage, &prev, &f.Liters, &f.PricePerLiter,
		&f.TotalPrice, &f.Station, &fuelType, &f.FullTank, &consumption, &f.Note); err != nil {
		return core.FuelRecord{}, err
	}
	f.PreviousMileage = intPtr(prev)
	f.Consumption = floatPtr(consumption)
	f.FuelType = core.FuelType(fuelType)
	return f, nil
}

func listFuelRecords(ctx context.Context, db dbtx, where string, args ...any) ([]core.FuelRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+fuelColumns+` FROM fuel_records `+where+` ORDER BY date, created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("list fuel records: %w", err)
	}
	defer rows.Close()

	out := make([]core.FuelRecord, 0)
	for rows.Next() {
		f, err := scanFuelRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fuel record: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const expenseColumns = `id, vehicle_id, date, amount_cents, category, description, recurring_id`

func (r *SQLiteRepository) ListExpenses(ctx context.Context, vehicleID string) ([]core.Expense, error) {
	return listExpenses(ctx, r.db, `WHERE vehicle_id = ?`, vehicleID)
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) error {
	if err := insertExpense(ctx, r.db, e, r.now().UnixNano(), nil); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"category", e.Category,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.String())
	return nil
}

func insertExpense(ctx context.Context, db dbtx, e core.Expense, createdAt int64, syncedAt any) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO expenses (`+expenseColumns+`, created_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.VehicleID, e.Date, e.Amount, e.Category, e.Description, e.RecurringID, createdAt, syncedAt)
	if err != nil {
		return fmt.Errorf("insert expense %s: %w", e.ID, err)
	}
	return nil
}

func scanExpense(s scanner) (core.Expense, error) {
	var e core.Expense
	if err := s.Scan(&e.ID, &e.VehicleID, &e.Date, &e.Amount, &e.Category, &e.Description, &e.RecurringID); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func listExpenses(ctx context.Context, db dbtx, where string, args ...any) ([]core.Expense, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses `+where+` ORDER BY date, created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListRecurring(ctx context.Context, vehicleID string) ([]core.RecurringExpense, error) {
	return listRecurring(ctx, r.db, `WHERE vehicle_id = ?`, vehicleID)
}

func (r *SQLiteRepository) SaveRecurring(ctx context.Context, re core.RecurringExpense) error {
	return upsertRecurring(ctx, r.db, re)
}

func upsertRecurring(ctx context.Context, db dbtx, re core.RecurringExpense) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO recurring_expenses (id, vehicle_id, description, amount_cents, cadence, next_date, category, anchor_day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vehicle_id = excluded.vehicle_id,
			description = excluded.description,
			amount_cents = excluded.amount_cents,
			cadence = excluded.cadence,
			next_date = excluded.next_date,
			category = excluded.category,
			anchor_day = excluded.anchor_day`,
		re.ID, re.VehicleID, re.Description, re.Amount, string(re.Cadence), re.NextDate, re.Category, re.AnchorDay)
	if err != nil {
		return fmt.Errorf("save recurring expense %s: %w", re.ID, err)
	}
	return nil
}

func listRecurring(ctx context.Context, db dbtx, where string, args ...any) ([]core.RecurringExpense, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, vehicle_id, description, amount_cents, cadence, next_date, category, anchor_day
		FROM recurring_expenses `+where+` ORDER BY next_date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.RecurringExpense, 0)
	for rows.Next() {
		var (
			re      core.RecurringExpense
			cadence string
		)
		if err := rows.Scan(&re.ID, &re.VehicleID, &re.Description, &re.Amount, &cadence, &re.NextDate, &re.Category, &re.AnchorDay); err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		re.Cadence = core.Cadence(cadence)
		out = append(out, re)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListPartLinks(ctx context.Context, templateID string) ([]core.PartLink, error) {
	if templateID == "" {
		return listPartLinks(ctx, r.db, "")
	}
	return listPartLinks(ctx, r.db, `WHERE template_id = ?`, templateID)
}

func (r *SQLiteRepository) AddPartLink(ctx context.Context, p core.PartLink) error {
	return insertPartLink(ctx, r.db, p)
}

func (r *SQLiteRepository) UpdatePartStatus(ctx context.Context, id string, status core.PartStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE part_links SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update part status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("part %s: %w", id, ports.ErrNotFound)
	}
	return nil
}

func insertPartLink(ctx context.Context, db dbtx, p core.PartLink) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO part_links (id, template_id, title, spec, url, price_cents, currency, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TemplateID, p.Title, p.Spec, p.URL, nullMoney(p.Price), string(p.Currency), string(p.Status))
	if err != nil {
		return fmt.Errorf("insert part link %s: %w", p.ID, err)
	}
	return nil
}

func listPartLinks(ctx context.Context, db dbtx, where string, args ...any) ([]core.PartLink, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, template_id, title, spec, url, price_cents, currency, status
		FROM part_links `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("list part links: %w", err)
	}
	defer rows.Close()

	out := make([]core.PartLink, 0)
	for rows.Next() {
		var (
			p        core.PartLink
			price    sql.NullInt64
			currency string
			status   string
		)
		if err := rows.Scan(&p.ID, &p.TemplateID, &p.Title, &p.Spec, &p.URL, &price, &currency, &status); err != nil {
			return nil, fmt.Errorf("scan part link: %w", err)
		}
		p.Price = moneyPtr(price)
		p.Currency = core.Currency(currency)
		p.Status = core.PartStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

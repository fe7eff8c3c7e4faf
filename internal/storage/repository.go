package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"carnote/assets"
	"carnote/internal/core"
	"carnote/internal/ports"

	_ "modernc.org/sqlite"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens dbPath, applies migrations and seeds the
// built-in templates and default vehicle into an empty database.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single connection keeps writes serialised
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("Database schema ready", "component", "storage", "version", version)

	repo := &SQLiteRepository{db: db, now: time.Now}
	if err := repo.seed(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed database: %w", err)
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) seed(ctx context.Context) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM maintenance_templates`).Scan(&n); err != nil {
		return fmt.Errorf("count templates: %w", err)
	}
	if n == 0 {
		tpls, err := assets.Templates()
		if err != nil {
			return err
		}
		for i, t := range tpls {
			if err := insertTemplate(ctx, r.db, t, i); err != nil {
				return err
			}
		}
		slog.InfoContext(ctx, "Seeded maintenance templates", "count", len(tpls))
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&n); err != nil {
		return fmt.Errorf("count vehicles: %w", err)
	}
	if n == 0 {
		v := assets.DefaultVehicle(r.now())
		if err := r.SaveVehicle(ctx, v); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Seeded default vehicle", "vehicle_id", v.ID)
	}
	return nil
}

func (r *SQLiteRepository) GetVehicle(ctx context.Context, id string) (core.Vehicle, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, make, model, year, engine, transmission, unit_distance, current_mileage, created_at
		FROM vehicles WHERE id = ?`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Vehicle{}, fmt.Errorf("vehicle %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return core.Vehicle{}, fmt.Errorf("get vehicle: %w", err)
	}
	return v, nil
}

func (r *SQLiteRepository) SaveVehicle(ctx context.Context, v core.Vehicle) error {
	return insertVehicle(ctx, r.db, v)
}

func (r *SQLiteRepository) UpdateVehicleMileage(ctx context.Context, id string, mileage int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE vehicles SET current_mileage = ? WHERE id = ?`, mileage, id)
	if err != nil {
		return fmt.Errorf("update vehicle mileage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("vehicle %s: %w", id, ports.ErrNotFound)
	}
	slog.DebugContext(ctx, "Vehicle mileage updated", "vehicle_id", id, "mileage", mileage)
	return nil
}

func (r *SQLiteRepository) GetTemplates(ctx context.Context) ([]core.MaintenanceTemplate, error) {
	return listTemplates(ctx, r.db)
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id string) (core.MaintenanceTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, interval_months, interval_distance, notes, source_url, unit_distance
		FROM maintenance_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MaintenanceTemplate{}, fmt.Errorf("template %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return core.MaintenanceTemplate{}, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func insertVehicle(ctx context.Context, db dbtx, v core.Vehicle) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO vehicles (id, make, model, year, engine, transmission, unit_distance, current_mileage, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			make = excluded.make,
			model = excluded.model,
			year = excluded.year,
			engine = excluded.engine,
			transmission = excluded.transmission,
			unit_distance = excluded.unit_distance,
			current_mileage = excluded.current_mileage`,
		v.ID, v.Make, v.Model, nullInt(v.Year), v.Engine, string(v.Transmission),
		string(v.UnitDistance), v.CurrentMileage, v.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save vehicle: %w", err)
	}
	return nil
}

func scanVehicle(s scanner) (core.Vehicle, error) {
	var (
		v            core.Vehicle
		year         sql.NullInt64
		transmission string
		unit         string
		createdAt    string
	)
	if err := s.Scan(&v.ID, &v.Make, &v.Model, &year, &v.Engine, &transmission, &unit, &v.CurrentMileage, &createdAt); err != nil {
		return core.Vehicle{}, err
	}
	v.Year = intPtr(year)
	v.Transmission = core.Transmission(transmission)
	v.UnitDistance = core.DistanceUnit(unit)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		v.CreatedAt = t
	}
	return v, nil
}

func listVehicles(ctx context.Context, db dbtx) ([]core.Vehicle, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, make, model, year, engine, transmission, unit_distance, current_mileage, created_at
		FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	out := make([]core.Vehicle, 0)
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func insertTemplate(ctx context.Context, db dbtx, t core.MaintenanceTemplate, position int) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO maintenance_templates (id, title, interval_months, interval_distance, notes, source_url, unit_distance, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, nullInt(t.IntervalMonths), nullInt(t.IntervalDistance), t.Notes, t.SourceURL,
		string(t.UnitDistance), position)
	if err != nil {
		return fmt.Errorf("insert template %s: %w", t.ID, err)
	}
	return nil
}

func scanTemplate(s scanner) (core.MaintenanceTemplate, error) {
	var (
		t        core.MaintenanceTemplate
		months   sql.NullInt64
		distance sql.NullInt64
		unit     string
	)
	if err := s.Scan(&t.ID, &t.Title, &months, &distance, &t.Notes, &t.SourceURL, &unit); err != nil {
		return core.MaintenanceTemplate{}, err
	}
	t.IntervalMonths = intPtr(months)
	t.IntervalDistance = intPtr(distance)
	t.UnitDistance = core.DistanceUnit(unit)
	return t, nil
}

func listTemplates(ctx context.Context, db dbtx) ([]core.MaintenanceTemplate, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, interval_months, interval_distance, notes, source_url, unit_distance
		FROM maintenance_templates ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := make([]core.MaintenanceTemplate, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullMoney(m *core.Money) any {
	if m == nil {
		return nil
	}
	return m.Cents
}

func moneyPtr(n sql.NullInt64) *core.Money {
	if !n.Valid {
		return nil
	}
	return &core.Money{Cents: n.Int64}
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func unixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

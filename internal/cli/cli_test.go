package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carnote/internal/config"
	"carnote/internal/core"
	"carnote/internal/log"
	"carnote/internal/ports"
	"carnote/internal/storage/memory"
)

func newStore() *memory.Store {
	return memory.New(
		core.Vehicle{ID: "v", Make: "Nissan", Model: "Note", UnitDistance: core.Kilometers, CurrentMileage: 9000},
		[]core.MaintenanceTemplate{
			{ID: "oil", Title: "Oil", IntervalMonths: core.IntPtr(6), IntervalDistance: core.IntPtr(10000), UnitDistance: core.Kilometers},
			{ID: "cabin", Title: "Cabin filter", IntervalMonths: core.IntPtr(12), UnitDistance: core.Kilometers},
		},
	)
}

func newTestApp(store ports.Repository) *App {
	return &App{
		Config: &config.Config{VehicleID: "v", SoonDays: 30, SoonDistance: 500, UpcomingWindowDays: 60},
		Open:   func(context.Context) (ports.Repository, error) { return store, nil },
		Today:  func() core.Date { return core.NewDate(2024, 8, 1) },
	}
}

func run(app *App, args ...string) (string, error) {
	root := NewRootCommand(app)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatusCommand(t *testing.T) {
	app := newTestApp(newStore())

	_, err := run(app, "service", "add", "oil", "--date", "2024-02-15", "--mileage", "8000", "--location", "СТО")
	require.NoError(t, err)

	out, err := run(app, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "mileage 9000 km")
	assert.Contains(t, out, "Oil")
	assert.Contains(t, out, "2024-08-15")

	out, err = run(app, "status", "--json")
	require.NoError(t, err)
	var board core.StatusBoard
	require.NoError(t, json.Unmarshal([]byte(out), &board))
	require.Len(t, board.Soon, 1)
	assert.Equal(t, "oil", board.Soon[0].Template.ID)
	assert.Len(t, board.OK, 1)
	assert.Equal(t, 18000, *board.Soon[0].Mileage)
}

func TestServiceAdd_UnknownTemplate(t *testing.T) {
	_, err := run(newTestApp(newStore()), "service", "add", "brakes", "--mileage", "9100")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrNotFound), "error = %v", err)
}

func TestServiceAdd_RaisesMileage(t *testing.T) {
	store := newStore()
	_, err := run(newTestApp(store), "service", "add", "cabin", "--mileage", "9400", "--cost", "350")
	require.NoError(t, err)

	v, err := store.GetVehicle(context.Background(), "v")
	require.NoError(t, err)
	assert.Equal(t, 9400, v.CurrentMileage)

	records, err := store.ListServiceRecords(context.Background(), "v")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-08-01", records[0].Date.String())
	require.NotNil(t, records[0].Cost)
	assert.Equal(t, int64(35000), records[0].Cost.Cents)
}

func TestFuelCommands(t *testing.T) {
	app := newTestApp(newStore())

	_, err := run(app, "fuel", "add", "--date", "2024-07-01", "--mileage", "10000", "--liters", "40", "--price", "50", "--station", "OKKO")
	require.NoError(t, err)
	out, err := run(app, "fuel", "add", "--date", "2024-07-20", "--mileage", "10500", "--liters", "35", "--price", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "consumption 7.00")

	out, err = run(app, "fuel", "stats", "--json")
	require.NoError(t, err)
	var stats core.FuelStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, int64(375000), stats.TotalCost.Cents)
	assert.InDelta(t, 7.0, stats.AvgConsumption, 1e-9)
	require.NotNil(t, stats.FavoriteStation)
	assert.Equal(t, "OKKO", *stats.FavoriteStation)

	out, err = run(app, "fuel", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "favorite station")
	assert.Contains(t, out, "3750.00")
}

func TestFuelAdd_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing liters", []string{"fuel", "add", "--mileage", "10000", "--price", "50"}},
		{"bad price", []string{"fuel", "add", "--mileage", "10000", "--liters", "40", "--price", "-1"}},
		{"bad date", []string{"fuel", "add", "--date", "01.07.2024", "--mileage", "10000", "--liters", "40", "--price", "50"}},
		{"bad fuel type", []string{"fuel", "add", "--mileage", "10000", "--liters", "40", "--price", "50", "--type", "LPG"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(newTestApp(newStore()), tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestExpenseCommands(t *testing.T) {
	app := newTestApp(newStore())

	_, err := run(app, "expense", "add", "--date", "2024-08-05", "--amount", "450", "--category", "ТО", "--description", "масло")
	require.NoError(t, err)
	_, err = run(app, "expense", "add", "--date", "2024-08-10", "--amount", "150,50", "--category", "Мойка")
	require.NoError(t, err)
	_, err = run(app, "expense", "add", "--date", "2024-07-10", "--amount", "100", "--category", "Мойка")
	require.NoError(t, err)

	out, err := run(app, "expense", "summary", "--json", "--label", "Август")
	require.NoError(t, err)
	var sum core.ExpenseSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, "Август", sum.Label)
	assert.Equal(t, "2024-08-01", sum.Start.String())
	assert.Equal(t, "2024-08-31", sum.End.String())
	assert.Equal(t, int64(60050), sum.TotalAmount.Cents)
	require.Len(t, sum.ByCategory, 2)
	assert.Equal(t, "ТО", sum.ByCategory[0].Category)

	out, err = run(app, "expense", "summary", "--from", "2024-07-01", "--to", "2024-07-31")
	require.NoError(t, err)
	assert.Contains(t, out, "100.00")
	assert.Contains(t, out, "100.0%")

	_, err = run(app, "expense", "summary", "--from", "2024-08-02", "--to", "2024-08-01")
	assert.Error(t, err)

	_, err = run(app, "expense", "add", "--amount", "10")
	assert.Error(t, err, "category is required")
}

func TestReportCommand(t *testing.T) {
	app := newTestApp(newStore())
	for _, args := range [][]string{
		{"expense", "add", "--date", "2024-03-01", "--amount", "500", "--category", "ТО"},
		{"expense", "add", "--date", "2024-03-02", "--amount", "50", "--category", "Мойка"},
		{"fuel", "add", "--date", "2024-03-05", "--mileage", "10000", "--liters", "40", "--price", "50"},
	} {
		_, err := run(app, args...)
		require.NoError(t, err, "%v", args)
	}

	out, err := run(app, "report", "--json")
	require.NoError(t, err)
	var r core.YearlyReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, 2024, r.Year)
	require.Len(t, r.Months, 12)
	assert.Equal(t, int64(50000), r.Months[2].Maintenance.Cents)
	assert.Equal(t, int64(5000), r.Months[2].Other.Cents)
	assert.Equal(t, int64(200000), r.Months[2].Fuel.Cents)
	assert.Equal(t, int64(255000), r.TotalExpenses.Cents)

	out, err = run(app, "report", "--year", "2023")
	require.NoError(t, err)
	assert.Contains(t, out, "total 0.00")

	_, err = run(app, "report", "--year", "1800")
	assert.Error(t, err)
}

func TestUpcomingCommand(t *testing.T) {
	store := newStore()
	ctx := context.Background()
	for _, re := range []core.RecurringExpense{
		{ID: "ins", VehicleID: "v", Description: "Страховка", Amount: core.Money{Cents: 120000}, Cadence: core.Yearly, NextDate: core.NewDate(2024, 9, 1)},
		{ID: "tax", VehicleID: "v", Description: "Налог", Amount: core.Money{Cents: 5000}, Cadence: core.Yearly, NextDate: core.NewDate(2024, 12, 1)},
	} {
		require.NoError(t, store.SaveRecurring(ctx, re))
	}

	out, err := run(newTestApp(store), "upcoming")
	require.NoError(t, err)
	assert.Contains(t, out, "Страховка")
	assert.NotContains(t, out, "Налог")
}

func TestExportImport(t *testing.T) {
	src := newTestApp(newStore())
	_, err := run(src, "expense", "add", "--date", "2024-08-05", "--amount", "450", "--category", "ТО")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "journal.json")
	_, err = run(src, "export", "--out", path)
	require.NoError(t, err)

	dst := newStore()
	out, err := run(newTestApp(dst), "import", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "imported: "), out)
	assert.Contains(t, out, "expenses")

	expenses, err := dst.ListExpenses(context.Background(), "v")
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, int64(45000), expenses[0].Amount.Cents)
}

func TestImport_InvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[1,2,3]`), 0o600))
	_, err := run(newTestApp(newStore()), "import", path)
	assert.Error(t, err)

	_, err = run(newTestApp(newStore()), "import", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestOpenRepository_Memory(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})
	cfg := &config.Config{DataBackend: "memory", DataDir: t.TempDir()}

	repo, closeFn, err := OpenRepository(context.Background(), logger, cfg)
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	defer closeFn()

	templates, err := repo.GetTemplates(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, templates, "memory backend falls back to the built-in seed")

	_, _, err = OpenRepository(context.Background(), logger, &config.Config{DataBackend: "sheets"})
	assert.Error(t, err)
}

func TestThresholds(t *testing.T) {
	th := Thresholds(&config.Config{SoonDays: 14, SoonDistance: 300})
	assert.Equal(t, 14, th.SoonDays)
	assert.Equal(t, 300, th.SoonDistance)
}

func TestRepositoryOpener_PersistedMemory(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})
	cfg := &config.Config{
		DataBackend:        "memory",
		DataDir:            t.TempDir(),
		MemoryPersist:      true,
		VehicleID:          "note-01",
		UpcomingWindowDays: 60,
	}
	app := &App{
		Config: cfg,
		Open:   RepositoryOpener(logger, cfg),
		Today:  func() core.Date { return core.NewDate(2024, 8, 1) },
	}

	_, err := run(app, "expense", "add", "--amount", "99.90", "--category", "Мойка")
	require.NoError(t, err)

	out, err := run(app, "expense", "summary", "--json")
	require.NoError(t, err)
	var sum core.ExpenseSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, int64(9990), sum.TotalAmount.Cents, "expense did not survive between invocations")
}

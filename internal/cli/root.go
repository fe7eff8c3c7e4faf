package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"carnote/internal/config"
	"carnote/internal/core"
	"carnote/internal/ports"
	"carnote/internal/services"
)

// App carries what every command needs to reach the journal.
type App struct {
	Config *config.Config
	// Open returns the repository for one command invocation. The command
	// closes it when done.
	Open  func(ctx context.Context) (ports.Repository, error)
	Today func() core.Date
}

// env is the per-invocation service set.
type env struct {
	repo        ports.Repository
	maintenance *services.MaintenanceService
	fuel        *services.FuelService
	journal     *services.JournalService
	reports     *services.ReportService
	today       core.Date
}

type rootOptions struct {
	json bool
}

// NewRootCommand builds the carnotectl command tree.
func NewRootCommand(app *App) *cobra.Command {
	if app.Today == nil {
		app.Today = core.Today
	}
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "carnotectl",
		Short: "Maintenance journal and running costs of one car",
		Long: `carnotectl reads and writes the car journal directly from the store.

Writes made here are not published to the sync queue; the worker's
periodic sweep mirrors them to Google Sheets.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print JSON instead of tables")

	root.AddCommand(
		newStatusCmd(app, opts),
		newServiceCmd(app, opts),
		newFuelCmd(app, opts),
		newExpenseCmd(app, opts),
		newReportCmd(app, opts),
		newUpcomingCmd(app, opts),
		newExportCmd(app),
		newImportCmd(app, opts),
	)
	return root
}

// withEnv opens the repository, wires the services and runs fn.
func withEnv(ctx context.Context, app *App, fn func(*env) error) error {
	repo, err := app.Open(ctx)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()

	cfg := app.Config
	vehicleID := cfg.VehicleID
	e := &env{
		repo:        repo,
		maintenance: services.NewMaintenanceService(repo, vehicleID, Thresholds(cfg)),
		fuel:        services.NewFuelService(repo, nil, vehicleID),
		journal:     services.NewJournalService(repo, nil, vehicleID),
		reports:     services.NewReportService(repo, vehicleID, cfg.MaintenanceTokens, cfg.UpcomingWindowDays),
		today:       app.Today(),
	}
	return fn(e)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// parseDateFlag parses a YYYY-MM-DD flag value, returning def when empty.
func parseDateFlag(name, value string, def core.Date) (core.Date, error) {
	if value == "" {
		return def, nil
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func dateOrDash(d *core.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

package http

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"carnote/internal/core"
	"carnote/internal/log"
)

type dashboardData struct {
	Vehicle  core.Vehicle
	Board    core.StatusBoard
	Fuel     core.FuelStats
	Upcoming []core.RecurringExpense
	Summary  core.ExpenseSummary
}

// handleDashboard renders the status board with fuel and expense panels.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.logger.LogError(r.Context(), "Templates not loaded", nil, log.ComponentTemplate, log.OpRender,
			log.LogFields{log.FieldErrorType: log.ErrorTypeConfiguration})
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	today := s.today()
	monthStart := core.NewDate(today.Year(), today.Month(), 1)
	var data dashboardData

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		data.Vehicle, err = s.repo.GetVehicle(ctx, s.vehicleID)
		return err
	})
	g.Go(func() (err error) {
		data.Board, err = s.maintenance.StatusBoard(ctx, today)
		return err
	})
	g.Go(func() (err error) {
		data.Fuel, err = s.fuel.Statistics(ctx)
		return err
	})
	g.Go(func() (err error) {
		data.Upcoming, err = s.reports.Upcoming(ctx, today)
		return err
	})
	g.Go(func() (err error) {
		data.Summary, err = s.reports.Summary(ctx, monthStart, today, "")
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.LogError(r.Context(), "Dashboard load failed", err, log.ComponentTemplate, log.OpRender, nil)
		http.Error(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		s.logger.LogError(r.Context(), "Dashboard template execution failed", err, log.ComponentTemplate, log.OpRender,
			log.LogFields{"template": "dashboard.html"})
	}
}

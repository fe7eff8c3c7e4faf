package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"carnote/internal/core"
	"carnote/internal/log"
	"carnote/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady checks that templates are loaded and the repository answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if _, err := s.repo.GetVehicle(ctx, s.vehicleID); err != nil {
		checks["repository"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["repository"] = "ok"
	}

	checks["cache"] = map[string]any{
		"report_entries": s.reportCache.Size(),
		"status":         "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	cacheStats := s.reportCache.Stats()

	journalWrites := atomic.LoadInt64(&s.appMetrics.journalWrites)
	imports := atomic.LoadInt64(&s.appMetrics.imports)
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Total number of 5xx responses", traceMetrics.ServerErrors)
	metric("journal_writes_total", "counter", "Journal rows stored through the API", journalWrites)
	metric("imports_total", "counter", "Successful imports", imports)
	metric("report_cache_hits_total", "counter", "Report cache hits", cacheStats.Hits)
	metric("report_cache_misses_total", "counter", "Report cache misses", cacheStats.Misses)
	metric("report_cache_entries", "gauge", "Current report cache entries", cacheStats.Entries)
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("blocked_requests_total", "counter", "Suspicious requests answered with 403", securityMetrics.BlockedRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", uptime.Seconds()))
}

// writeError answers with the status err maps to and logs server faults.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, component, operation string) {
	resp := ErrorFromErr(err)
	if resp.StatusCode() >= http.StatusInternalServerError {
		s.logger.LogError(r.Context(), "Request failed", err, component, operation,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", ""))
	}
	resp.Write(w)
}

// journalWritten counts a stored row, logs it and drops stale reports.
func (s *Server) journalWritten(ctx context.Context, kind, id string, fields log.LogFields, prefixes ...string) {
	atomic.AddInt64(&s.appMetrics.journalWrites, 1)
	s.logger.LogJournalWrite(ctx, kind, id, fields)
	s.invalidate(ctx, prefixes...)
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := s.repo.GetVehicle(r.Context(), s.vehicleID)
	if err != nil {
		s.writeError(w, r, err, log.ComponentStorage, log.OpRead)
		return
	}
	NewJSONResponse().Data(v).Write(w)
}

func (s *Server) handleSetMileage(w http.ResponseWriter, r *http.Request) {
	var req mileageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, log.ComponentJournal, log.OpUpdate)
		return
	}
	if err := s.journal.SetMileage(r.Context(), req.Mileage); err != nil {
		s.writeError(w, r, err, log.ComponentJournal, log.OpUpdate)
		return
	}
	s.invalidate(r.Context(), "status:")
	log.FromContext(r.Context()).InfoContext(r.Context(), "Mileage updated",
		log.FieldVehicleID, s.vehicleID,
		log.FieldMileage, req.Mileage)

	s.handleGetVehicle(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	today := s.today()
	board, err := cached(r.Context(), s, "status:"+today.String(), func(ctx context.Context) (core.StatusBoard, error) {
		return s.maintenance.StatusBoard(ctx, today)
	})
	if err != nil {
		s.writeError(w, r, err, log.ComponentReports, log.OpRead)
		return
	}
	NewJSONResponse().Data(board).Write(w)
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	detail, err := s.maintenance.TemplateStatus(r.Context(), r.PathValue("id"), s.today())
	if err != nil {
		s.writeError(w, r, err, log.ComponentReports, log.OpRead)
		return
	}
	NewJSONResponse().Data(detail).Write(w)
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.repo.ListServiceRecords(r.Context(), s.vehicleID)
	if err != nil {
		s.writeError(w, r, err, log.ComponentStorage, log.OpList)
		return
	}
	filtered := services.FilterServiceRecords(records, q.Get("templateId"), services.ParsePeriod(q.Get("period")), s.today())
	NewJSONResponse().Data(map[string]any{
		"records": filtered,
		"stats":   services.ComputeJournalStats(filtered),
	}).Write(w)
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, log.ComponentJournal, log.OpCreate)
		return
	}
	rec, err := req.record(s.today())
	if err != nil {
		s.writeError(w, r, err, log.ComponentJournal, log.OpValidate)
		return
	}
	saved, err := s.journal.AddServiceRecord(r.Context(), rec)
	if err != nil {
		s.writeError(w, r, err, log.ComponentJournal, log.OpCreate)
		return
	}
	s.journalWritten(r.Context(), "service", fmt.Sprint(saved.ID),
		log.LogFields{log.FieldTemplateID: saved.TemplateID, log.FieldMileage: saved.Mileage},
		"status:", "yearly:")
	NewJSONResponse().Status(http.StatusCreated).Data(saved).Write(w)
}

func (s *Server) handleListParts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	parts, err := s.repo.ListPartLinks(r.Context(), q.Get("templateId"))
	if err != nil {
		s.writeError(w, r, err, log.ComponentStorage, log.OpList)
		return
	}
	filtered := services.FilterParts(parts, q.Get("status"))
	NewJSONResponse().Data(map[string]any{
		"parts":       filtered,
		"outstanding": services.PartsOutstanding(filtered),
	}).Write(w)
}

func (s *Server) handleCreatePart(w http.ResponseWriter, r *http.Request) {
	var req partRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, log.ComponentJournal, log.OpCreate)
		return
	}
	if _, err := s.repo.GetTemplate(r.Context(), req.TemplateID); err != nil {
		s.writeError(w, r, fmt.Errorf("get template %s: %w", req.TemplateID, err), log.ComponentJournal, log.OpCreate)
		return
	}
	saved, err := s.journal.AddPartLink(r.Context(), req.part())
	if err != nil {
		s.writeError(w, r, err, log.ComponentJournal, log.OpCreate)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(saved).Write(w)
}

func (s *Server) handleUpdatePartStatus(w http.ResponseWriter, r *http.Request) {
	var req partStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, log.ComponentJournal, log.OpUpdate)
		return
	}
	id := r.PathValue("id")
	if err := s.journal.UpdatePartStatus(r.Context(), id, core.PartStatus(req.Status)); err != nil {
		s.writeError(w, r, err, log.ComponentJournal, log.OpUpdate)
		return
	}
	NewJSONResponse().Data(map[string]string{"id": id, "status": req.Status}).Write(w)
}

func (s *Server) handleListFuel(w http.ResponseWriter, r *http.Request) {
	records, err := s.fuel.List(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.ComponentFuel, log.OpList)
		return
	}
	NewJSONResponse().Data(records).Write(w)
}

func (s *Server) handleCreateFuel(w http.ResponseWriter, r *http.Request) {
	var req fuelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, log.ComponentFuel, log.OpCreate)
		return
	}
	rec, err := req.record(s.today())
	if err != nil {
		s.writeError(w, r, err, log.ComponentFuel, log.OpValidate)
		return
	}
	saved, err := s.fuel.AddFuelRecord(r.Context(), rec)
	if err != nil {
		s.writeError(w, r, err, log.ComponentFuel, log.OpCreate)
		return
	}
	s.journalWritten(r.Context(), "fuel", saved.ID,
		log.LogFields{log.FieldMileage: saved.Mileage, log.FieldAmount: saved.TotalPrice.String()},
		"fuel:", "yearly:", "status:")
	NewJSONResponse().Status(http.StatusCreated).Data(saved).Write(w)
}

func (s *Server) handleFuelStats(w http.ResponseWriter, r *http.Request) {
	stats, err := cached(r.Context(), s, "fuel:stats", s.fuel.Statistics)
	if err != nil {
		s.writeError(w, r, err, log.ComponentFuel, log.OpRead)
		return
	}
	NewJSONResponse().Data(stats).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.reports.ListExpenses(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.ComponentReports, log.OpList)
		return
	}
	NewJSONResponse().Data(expenses).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, log.ComponentJournal, log.OpCreate)
		return
	}
	e, err := req.expense(s.today())
	if err != nil {
		s.writeError(w, r, err, log.ComponentJournal, log.OpValidate)
		return
	}
	saved, err := s.journal.AddExpense(r.Context(), e)
	if err != nil {
		s.writeError(w, r, err, log.ComponentJournal, log.OpCreate)
		return
	}
	s.journalWritten(r.Context(), "expense", saved.ID,
		log.LogFields{log.FieldCategory: saved.Category, log.FieldAmount: saved.Amount.String()},
		"summary:", "yearly:")
	NewJSONResponse().Status(http.StatusCreated).Data(saved).Write(w)
}

func (s *Server) handleExpenseSummary(w http.ResponseWriter, r *http.Request) {
	start, end, label, err := parseSummaryWindow(r.URL.Query(), s.today())
	if err != nil {
		s.writeError(w, r, err, log.ComponentReports, log.OpValidate)
		return
	}
	key := fmt.Sprintf("summary:%s:%s:%s", start, end, label)
	sum, err := cached(r.Context(), s, key, func(ctx context.Context) (core.ExpenseSummary, error) {
		return s.reports.Summary(ctx, start, end, label)
	})
	if err != nil {
		s.writeError(w, r, err, log.ComponentReports, log.OpRead)
		return
	}
	NewJSONResponse().Data(sum).Write(w)
}

func (s *Server) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query(), s.today().Year())
	if err != nil {
		s.writeError(w, r, err, log.ComponentReports, log.OpValidate)
		return
	}
	report, err := cached(r.Context(), s, fmt.Sprintf("yearly:%d", year), func(ctx context.Context) (core.YearlyReport, error) {
		return s.reports.Yearly(ctx, year)
	})
	if err != nil {
		s.writeError(w, r, err, log.ComponentReports, log.OpRead)
		return
	}
	NewJSONResponse().Data(report).Write(w)
}

func (s *Server) handleSaveRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, log.ComponentRecurring, log.OpCreate)
		return
	}
	re, err := req.recurring()
	if err != nil {
		s.writeError(w, r, err, log.ComponentRecurring, log.OpValidate)
		return
	}
	saved, err := s.journal.SaveRecurring(r.Context(), re)
	if err != nil {
		s.writeError(w, r, err, log.ComponentRecurring, log.OpCreate)
		return
	}
	s.invalidate(r.Context(), "upcoming:")
	NewJSONResponse().Status(http.StatusCreated).Data(saved).Write(w)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	today := s.today()
	items, err := cached(r.Context(), s, "upcoming:"+today.String(), func(ctx context.Context) ([]core.RecurringExpense, error) {
		return s.reports.Upcoming(ctx, today)
	})
	if err != nil {
		s.writeError(w, r, err, log.ComponentReports, log.OpRead)
		return
	}
	NewJSONResponse().Data(items).Write(w)
}

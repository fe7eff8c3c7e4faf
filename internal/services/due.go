// Package services provides business logic and orchestration services.
//
// This file implements the maintenance due projection: when the next service
// falls due and whether an item is ok, due soon or overdue.
package services

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"carnote/internal/core"
	"carnote/internal/ports"
)

// Thresholds are the margins before a due date or mileage at which an item
// becomes "soon".
type Thresholds struct {
	SoonDays     int
	SoonDistance int
}

// DefaultThresholds returns 30 days and 500 distance units.
func DefaultThresholds() Thresholds {
	return Thresholds{SoonDays: 30, SoonDistance: 500}
}

// ComputeNextDue projects the next service from the last one. A missing or
// non-positive interval leaves the corresponding field nil.
func ComputeNextDue(lastDate *core.Date, lastMileage, intervalMonths, intervalDistance *int) core.NextDue {
	var next core.NextDue
	if lastDate != nil && !lastDate.IsZero() && intervalMonths != nil && *intervalMonths > 0 {
		d := lastDate.AddMonths(*intervalMonths)
		next.Date = &d
	}
	if lastMileage != nil && intervalDistance != nil && *intervalDistance > 0 {
		m := *lastMileage + *intervalDistance
		next.Mileage = &m
	}
	return next
}

// ComputeStatus classifies an item. Overdue wins over soon; with no
// projection at all the item is ok.
func ComputeStatus(today core.Date, currentMileage int, next core.NextDue, th Thresholds) core.Status {
	if next.Date != nil && today.After(*next.Date) {
		return core.StatusOverdue
	}
	if next.Mileage != nil && currentMileage > *next.Mileage {
		return core.StatusOverdue
	}
	if next.Date != nil && today.DaysUntil(*next.Date) <= th.SoonDays {
		return core.StatusSoon
	}
	if next.Mileage != nil && *next.Mileage-currentMileage <= th.SoonDistance {
		return core.StatusSoon
	}
	return core.StatusOK
}

// SortByStatus orders rows overdue, soon, ok and keeps the input order
// within each group.
func SortByStatus(rows []core.TemplateStatus) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Status.Priority() < rows[j].Status.Priority()
	})
}

// LatestByTemplate picks the newest record of every template. Records with
// the same date are resolved in favour of the later added one.
func LatestByTemplate(records []core.ServiceRecord) map[string]core.ServiceRecord {
	latest := make(map[string]core.ServiceRecord, len(records))
	for _, r := range records {
		cur, ok := latest[r.TemplateID]
		if !ok || r.Date.After(cur.Date) || (r.Date.Equal(cur.Date.Time) && newerRecord(r, cur)) {
			latest[r.TemplateID] = r
		}
	}
	return latest
}

func newerRecord(a, b core.ServiceRecord) bool {
	if !a.AddedAt.Equal(b.AddedAt) {
		return a.AddedAt.After(b.AddedAt)
	}
	return a.ID > b.ID
}

// ProjectTemplate computes the status row of one template.
func ProjectTemplate(t core.MaintenanceTemplate, last *core.ServiceRecord, currentMileage int, today core.Date, th Thresholds) core.TemplateStatus {
	row := core.TemplateStatus{Template: t}
	if last != nil {
		rec := *last
		row.LastRecord = &rec
		mileage := rec.Mileage
		row.NextDue = ComputeNextDue(&rec.Date, &mileage, t.IntervalMonths, t.IntervalDistance)
	}
	row.Status = ComputeStatus(today, currentMileage, row.NextDue, th)
	return row
}

// BuildStatusBoard projects every template against its latest record and
// groups the rows by status.
func BuildStatusBoard(vehicle core.Vehicle, templates []core.MaintenanceTemplate, records []core.ServiceRecord, today core.Date, th Thresholds) core.StatusBoard {
	latest := LatestByTemplate(records)
	board := core.StatusBoard{
		Today:          today,
		CurrentMileage: vehicle.CurrentMileage,
		UnitDistance:   vehicle.UnitDistance,
		Rows:           make([]core.TemplateStatus, 0, len(templates)),
		Overdue:        []core.TemplateStatus{},
		Soon:           []core.TemplateStatus{},
		OK:             []core.TemplateStatus{},
	}
	for _, t := range templates {
		var last *core.ServiceRecord
		if r, ok := latest[t.ID]; ok {
			last = &r
		}
		board.Rows = append(board.Rows, ProjectTemplate(t, last, vehicle.CurrentMileage, today, th))
	}
	SortByStatus(board.Rows)
	for _, row := range board.Rows {
		switch row.Status {
		case core.StatusOverdue:
			board.Overdue = append(board.Overdue, row)
		case core.StatusSoon:
			board.Soon = append(board.Soon, row)
		default:
			board.OK = append(board.OK, row)
		}
	}
	return board
}

// TemplateDetail is one template with its full service history.
type TemplateDetail struct {
	core.TemplateStatus
	History []core.ServiceRecord `json:"history"`
}

// MaintenanceService loads maintenance data from the repository and runs the
// projector over it.
type MaintenanceService struct {
	repo       ports.Repository
	vehicleID  string
	thresholds Thresholds
}

func NewMaintenanceService(repo ports.Repository, vehicleID string, th Thresholds) *MaintenanceService {
	return &MaintenanceService{repo: repo, vehicleID: vehicleID, thresholds: th}
}

// StatusBoard builds the board for today.
func (s *MaintenanceService) StatusBoard(ctx context.Context, today core.Date) (core.StatusBoard, error) {
	var (
		vehicle   core.Vehicle
		templates []core.MaintenanceTemplate
		records   []core.ServiceRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vehicle, err = s.repo.GetVehicle(gctx, s.vehicleID)
		if err != nil {
			return fmt.Errorf("get vehicle: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		templates, err = s.repo.GetTemplates(gctx)
		if err != nil {
			return fmt.Errorf("get templates: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		records, err = s.repo.ListServiceRecords(gctx, s.vehicleID)
		if err != nil {
			return fmt.Errorf("list service records: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.StatusBoard{}, err
	}
	return BuildStatusBoard(vehicle, templates, records, today, s.thresholds), nil
}

// TemplateStatus returns the projection of a single template together with
// its history, newest first.
func (s *MaintenanceService) TemplateStatus(ctx context.Context, templateID string, today core.Date) (TemplateDetail, error) {
	tpl, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return TemplateDetail{}, fmt.Errorf("get template %s: %w", templateID, err)
	}
	vehicle, err := s.repo.GetVehicle(ctx, s.vehicleID)
	if err != nil {
		return TemplateDetail{}, fmt.Errorf("get vehicle: %w", err)
	}
	records, err := s.repo.ListServiceRecords(ctx, s.vehicleID)
	if err != nil {
		return TemplateDetail{}, fmt.Errorf("list service records: %w", err)
	}

	history := make([]core.ServiceRecord, 0)
	for _, r := range records {
		if r.TemplateID == templateID {
			history = append(history, r)
		}
	}
	SortRecordsNewestFirst(history)

	var last *core.ServiceRecord
	if l, ok := LatestByTemplate(history)[templateID]; ok {
		last = &l
	}
	return TemplateDetail{
		TemplateStatus: ProjectTemplate(tpl, last, vehicle.CurrentMileage, today, s.thresholds),
		History:        history,
	}, nil
}

// Thresholds returns the configured soon margins.
func (s *MaintenanceService) Thresholds() Thresholds { return s.thresholds }

// SortRecordsNewestFirst orders service records by date descending, later
// added first on equal dates.
func SortRecordsNewestFirst(records []core.ServiceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date)
		}
		return newerRecord(a, b)
	})
}

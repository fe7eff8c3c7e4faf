package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"carnote/internal/core"
	"carnote/internal/ports"
)

// Period is a trailing journal window.
type Period string

const (
	PeriodAll     Period = "all"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// Days returns the window length, 0 for PeriodAll.
func (p Period) Days() int {
	switch p {
	case PeriodMonth:
		return 30
	case PeriodQuarter:
		return 90
	case PeriodYear:
		return 365
	default:
		return 0
	}
}

// ParsePeriod maps an empty or unknown value to PeriodAll.
func ParsePeriod(s string) Period {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodMonth, PeriodQuarter, PeriodYear:
		return p
	}
	return PeriodAll
}

// FilterServiceRecords keeps records of templateID (any when empty) dated
// within the trailing period, newest first.
func FilterServiceRecords(records []core.ServiceRecord, templateID string, period Period, today core.Date) []core.ServiceRecord {
	out := make([]core.ServiceRecord, 0, len(records))
	var since core.Date
	if days := period.Days(); days > 0 {
		since = today.AddDays(-days)
	}
	for _, r := range records {
		if templateID != "" && r.TemplateID != templateID {
			continue
		}
		if !since.IsZero() && r.Date.Before(since) {
			continue
		}
		out = append(out, r)
	}
	SortRecordsNewestFirst(out)
	return out
}

// ComputeJournalStats counts records and sums their costs. The average is
// rounded to whole currency units.
func ComputeJournalStats(records []core.ServiceRecord) core.JournalStats {
	stats := core.JournalStats{Count: len(records)}
	for _, r := range records {
		if r.Cost != nil {
			stats.TotalCost = stats.TotalCost.Add(*r.Cost)
		}
	}
	if stats.Count > 0 {
		avg := math.Round(stats.TotalCost.Units() / float64(stats.Count))
		stats.AverageCost = core.MoneyFromUnits(avg)
	}
	return stats
}

// FilterParts keeps parts with the given status; "" or "all" keeps every part.
func FilterParts(parts []core.PartLink, status string) []core.PartLink {
	out := make([]core.PartLink, 0, len(parts))
	for _, p := range parts {
		if status == "" || status == "all" || string(p.Status) == status {
			out = append(out, p)
		}
	}
	return out
}

// PartsOutstanding sums the prices of parts not yet installed.
func PartsOutstanding(parts []core.PartLink) core.Money {
	var total core.Money
	for _, p := range parts {
		if p.Status != core.PartInstalled && p.Price != nil {
			total = total.Add(*p.Price)
		}
	}
	return total
}

// JournalService stores journal entries and announces them over AMQP.
type JournalService struct {
	repo      ports.Repository
	publisher ports.EventPublisher
	vehicleID string
	now       func() time.Time
}

func NewJournalService(repo ports.Repository, publisher ports.EventPublisher, vehicleID string) *JournalService {
	return &JournalService{repo: repo, publisher: publisher, vehicleID: vehicleID, now: time.Now}
}

// VehicleID is the vehicle every entry is attached to.
func (s *JournalService) VehicleID() string { return s.vehicleID }

// AddServiceRecord saves a completed service and raises the odometer when
// the service reading is ahead of it.
func (s *JournalService) AddServiceRecord(ctx context.Context, r core.ServiceRecord) (core.ServiceRecord, error) {
	if r.VehicleID == "" {
		r.VehicleID = s.vehicleID
	}
	r.AddedAt = s.now().UTC()
	if err := r.Validate(); err != nil {
		return core.ServiceRecord{}, err
	}
	if _, err := s.repo.GetTemplate(ctx, r.TemplateID); err != nil {
		return core.ServiceRecord{}, fmt.Errorf("get template %s: %w", r.TemplateID, err)
	}

	id, err := s.repo.AddServiceRecord(ctx, r)
	if err != nil {
		return core.ServiceRecord{}, fmt.Errorf("save service record: %w", err)
	}
	r.ID = id
	bumpMileage(ctx, s.repo, r.VehicleID, r.Mileage)
	publishSync(ctx, s.publisher, ports.JournalRef{Kind: ports.KindService, ID: strconv.FormatInt(id, 10)})
	return r, nil
}

// AddExpense saves a one-off expense.
func (s *JournalService) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.VehicleID == "" {
		e.VehicleID = s.vehicleID
	}
	e.Category = strings.TrimSpace(e.Category)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := s.repo.AddExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	publishSync(ctx, s.publisher, ports.JournalRef{Kind: ports.KindExpense, ID: e.ID})
	return e, nil
}

// SaveRecurring creates or updates a recurring charge.
func (s *JournalService) SaveRecurring(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error) {
	if re.VehicleID == "" {
		re.VehicleID = s.vehicleID
	}
	if err := re.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}
	if re.ID == "" {
		re.ID = uuid.NewString()
	}
	if re.AnchorDay == 0 {
		re.AnchorDay = re.NextDate.Day()
	}
	if err := s.repo.SaveRecurring(ctx, re); err != nil {
		return core.RecurringExpense{}, fmt.Errorf("save recurring expense: %w", err)
	}
	return re, nil
}

// AddPartLink saves a part for a template. New parts start as needed.
func (s *JournalService) AddPartLink(ctx context.Context, p core.PartLink) (core.PartLink, error) {
	if p.Status == "" {
		p.Status = core.PartNeeded
	}
	if err := p.Validate(); err != nil {
		return core.PartLink{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.repo.AddPartLink(ctx, p); err != nil {
		return core.PartLink{}, fmt.Errorf("save part link: %w", err)
	}
	return p, nil
}

// UpdatePartStatus moves a part along need, in_cart, bought, installed.
func (s *JournalService) UpdatePartStatus(ctx context.Context, id string, status core.PartStatus) error {
	if !status.Valid() {
		return core.ErrInvalidPartStatus
	}
	if err := s.repo.UpdatePartStatus(ctx, id, status); err != nil {
		return fmt.Errorf("update part %s: %w", id, err)
	}
	return nil
}

// SetMileage records an odometer reading from the settings screen.
func (s *JournalService) SetMileage(ctx context.Context, mileage int) error {
	if mileage < 0 {
		return core.ErrInvalidMileage
	}
	if err := s.repo.UpdateVehicleMileage(ctx, s.vehicleID, mileage); err != nil {
		return fmt.Errorf("update mileage: %w", err)
	}
	return nil
}

// bumpMileage raises the vehicle odometer to mileage if it is behind.
// Failures are logged; the journal entry is already saved.
func bumpMileage(ctx context.Context, repo ports.VehicleStore, vehicleID string, mileage int) {
	v, err := repo.GetVehicle(ctx, vehicleID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load vehicle for mileage update", "vehicle_id", vehicleID, "error", err)
		return
	}
	if mileage <= v.CurrentMileage {
		return
	}
	if err := repo.UpdateVehicleMileage(ctx, vehicleID, mileage); err != nil {
		slog.WarnContext(ctx, "Failed to update vehicle mileage", "vehicle_id", vehicleID, "error", err)
	}
}

// publishSync announces a new journal row. Publishing is best effort.
func publishSync(ctx context.Context, pub ports.EventPublisher, ref ports.JournalRef) {
	if pub == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message", "kind", ref.Kind, "id", ref.ID)
		return
	}
	if err := pub.PublishJournalSync(ctx, ref); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"kind", ref.Kind, "id", ref.ID, "error", err)
	}
}

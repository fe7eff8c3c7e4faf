// Package memory is a mutex-guarded in-memory Repository. It backs the
// memory data backend and the tests of the packages above it.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"carnote/assets"
	"carnote/internal/core"
	"carnote/internal/ports"
)

// SnapshotFile is the optional seed file looked up by NewFromDir.
const SnapshotFile = "snapshot.json"

type Store struct {
	mu        sync.Mutex
	vehicles  []core.Vehicle
	templates []core.MaintenanceTemplate
	records   []core.ServiceRecord
	parts     []core.PartLink
	fuel      []core.FuelRecord
	expenses  []core.Expense
	recurring []core.RecurringExpense

	nextRecordID int64
	journal      []ports.JournalRef // insertion order
	synced       map[ports.JournalRef]time.Time
}

var _ ports.Repository = (*Store)(nil)

// New returns an empty store holding only the given vehicle and templates.
func New(vehicle core.Vehicle, templates []core.MaintenanceTemplate) *Store {
	s := &Store{synced: make(map[ports.JournalRef]time.Time), nextRecordID: 1}
	s.vehicles = append(s.vehicles, vehicle)
	s.templates = append(s.templates, templates...)
	return s
}

// NewSeeded returns a store with the built-in templates and default vehicle.
func NewSeeded() (*Store, error) {
	tpls, err := assets.Templates()
	if err != nil {
		return nil, err
	}
	return New(assets.DefaultVehicle(time.Now()), tpls), nil
}

// NewFromDir loads base/snapshot.json (an export document) when present and
// falls back to the built-in seed otherwise.
func NewFromDir(base string) (*Store, error) {
	s, err := NewSeeded()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(base, SnapshotFile))
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap ports.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.Replace(context.Background(), snap, presentTables(snap)); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveToDir writes the store to base/snapshot.json so NewFromDir can load
// it again. The file is replaced atomically.
func (s *Store) SaveToDir(base string) error {
	snap, err := s.Dump(context.Background())
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(base, SnapshotFile+".*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(base, SnapshotFile)); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func presentTables(s ports.Snapshot) ports.Tables {
	return ports.Tables{
		Vehicles:    s.Vehicles != nil,
		Templates:   s.Templates != nil,
		Records:     s.Records != nil,
		PartLinks:   s.PartLinks != nil,
		FuelRecords: s.FuelRecords != nil,
		Expenses:    s.Expenses != nil,
		Recurring:   s.Recurring != nil,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) GetVehicle(_ context.Context, id string) (core.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vehicles {
		if v.ID == id {
			return v, nil
		}
	}
	return core.Vehicle{}, fmt.Errorf("vehicle %s: %w", id, ports.ErrNotFound)
}

func (s *Store) SaveVehicle(_ context.Context, v core.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.vehicles {
		if s.vehicles[i].ID == v.ID {
			s.vehicles[i] = v
			return nil
		}
	}
	s.vehicles = append(s.vehicles, v)
	return nil
}

func (s *Store) UpdateVehicleMileage(_ context.Context, id string, mileage int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.vehicles {
		if s.vehicles[i].ID == id {
			s.vehicles[i].CurrentMileage = mileage
			return nil
		}
	}
	return fmt.Errorf("vehicle %s: %w", id, ports.ErrNotFound)
}

func (s *Store) GetTemplates(_ context.Context) ([]core.MaintenanceTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MaintenanceTemplate(nil), s.templates...), nil
}

func (s *Store) GetTemplate(_ context.Context, id string) (core.MaintenanceTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.templates {
		if t.ID == id {
			return t, nil
		}
	}
	return core.MaintenanceTemplate{}, fmt.Errorf("template %s: %w", id, ports.ErrNotFound)
}

func (s *Store) ListServiceRecords(_ context.Context, vehicleID string) ([]core.ServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ServiceRecord, 0)
	for _, r := range s.records {
		if r.VehicleID == vehicleID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) GetServiceRecord(_ context.Context, id int64) (core.ServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return core.ServiceRecord{}, fmt.Errorf("service record %d: %w", id, ports.ErrNotFound)
}

func (s *Store) AddServiceRecord(_ context.Context, r core.ServiceRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextRecordID
	s.nextRecordID++
	s.records = append(s.records, r)
	s.journal = append(s.journal, ports.JournalRef{Kind: ports.KindService, ID: strconv.FormatInt(r.ID, 10)})
	return r.ID, nil
}

func (s *Store) ListFuelRecords(_ context.Context, vehicleID string) ([]core.FuelRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.FuelRecord, 0)
	for _, f := range s.fuel {
		if f.VehicleID == vehicleID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) GetFuelRecord(_ context.Context, id string) (core.FuelRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.fuel {
		if f.ID == id {
			return f, nil
		}
	}
	return core.FuelRecord{}, fmt.Errorf("fuel record %s: %w", id, ports.ErrNotFound)
}

func (s *Store) AddFuelRecord(_ context.Context, f core.FuelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fuel = append(s.fuel, f)
	s.journal = append(s.journal, ports.JournalRef{Kind: ports.KindFuel, ID: f.ID})
	return nil
}

func (s *Store) ListExpenses(_ context.Context, vehicleID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if e.VehicleID == vehicleID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, fmt.Errorf("expense %s: %w", id, ports.ErrNotFound)
}

func (s *Store) AddExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, e)
	s.journal = append(s.journal, ports.JournalRef{Kind: ports.KindExpense, ID: e.ID})
	return nil
}

func (s *Store) ListRecurring(_ context.Context, vehicleID string) ([]core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RecurringExpense, 0)
	for _, re := range s.recurring {
		if re.VehicleID == vehicleID {
			out = append(out, re)
		}
	}
	return out, nil
}

func (s *Store) SaveRecurring(_ context.Context, re core.RecurringExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recurring {
		if s.recurring[i].ID == re.ID {
			s.recurring[i] = re
			return nil
		}
	}
	s.recurring = append(s.recurring, re)
	return nil
}

func (s *Store) ListPartLinks(_ context.Context, templateID string) ([]core.PartLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.PartLink, 0)
	for _, p := range s.parts {
		if templateID == "" || p.TemplateID == templateID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) AddPartLink(_ context.Context, p core.PartLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts = append(s.parts, p)
	return nil
}

func (s *Store) UpdatePartStatus(_ context.Context, id string, status core.PartStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.parts {
		if s.parts[i].ID == id {
			s.parts[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("part %s: %w", id, ports.ErrNotFound)
}

func (s *Store) Dump(_ context.Context) (ports.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ports.Snapshot{
		Vehicles:    append([]core.Vehicle{}, s.vehicles...),
		Templates:   append([]core.MaintenanceTemplate{}, s.templates...),
		Records:     append([]core.ServiceRecord{}, s.records...),
		PartLinks:   append([]core.PartLink{}, s.parts...),
		FuelRecords: append([]core.FuelRecord{}, s.fuel...),
		Expenses:    append([]core.Expense{}, s.expenses...),
		Recurring:   append([]core.RecurringExpense{}, s.recurring...),
	}, nil
}

// Replace swaps the selected tables. Imported journal rows count as synced.
func (s *Store) Replace(_ context.Context, snap ports.Snapshot, t ports.Tables) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if t.Vehicles {
		s.vehicles = append([]core.Vehicle{}, snap.Vehicles...)
	}
	if t.Templates {
		s.templates = append([]core.MaintenanceTemplate{}, snap.Templates...)
	}
	if t.PartLinks {
		s.parts = append([]core.PartLink{}, snap.PartLinks...)
	}
	if t.Recurring {
		s.recurring = append([]core.RecurringExpense{}, snap.Recurring...)
	}
	if t.Records {
		s.dropJournal(ports.KindService)
		s.records = append([]core.ServiceRecord{}, snap.Records...)
		s.nextRecordID = 1
		for _, r := range s.records {
			s.nextRecordID = max(s.nextRecordID, r.ID+1)
			s.markImported(ports.JournalRef{Kind: ports.KindService, ID: strconv.FormatInt(r.ID, 10)}, now)
		}
	}
	if t.FuelRecords {
		s.dropJournal(ports.KindFuel)
		s.fuel = append([]core.FuelRecord{}, snap.FuelRecords...)
		for _, f := range s.fuel {
			s.markImported(ports.JournalRef{Kind: ports.KindFuel, ID: f.ID}, now)
		}
	}
	if t.Expenses {
		s.dropJournal(ports.KindExpense)
		s.expenses = append([]core.Expense{}, snap.Expenses...)
		for _, e := range s.expenses {
			s.markImported(ports.JournalRef{Kind: ports.KindExpense, ID: e.ID}, now)
		}
	}
	return nil
}

func (s *Store) dropJournal(kind ports.JournalKind) {
	kept := s.journal[:0]
	for _, ref := range s.journal {
		if ref.Kind != kind {
			kept = append(kept, ref)
		} else {
			delete(s.synced, ref)
		}
	}
	s.journal = kept
}

func (s *Store) markImported(ref ports.JournalRef, at time.Time) {
	s.journal = append(s.journal, ref)
	s.synced[ref] = at
}

func (s *Store) ListPendingSync(_ context.Context, limit int) ([]ports.JournalRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.JournalRef, 0)
	for _, ref := range s.journal {
		if _, ok := s.synced[ref]; ok {
			continue
		}
		out = append(out, ref)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) IsSynced(_ context.Context, ref ports.JournalRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.synced[ref]
	return ok, nil
}

func (s *Store) MarkSynced(_ context.Context, ref ports.JournalRef, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced[ref] = at
	return nil
}

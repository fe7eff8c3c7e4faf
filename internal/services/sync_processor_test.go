package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"carnote/internal/core"
	"carnote/internal/ports"
)

type fakeMirror struct {
	mu       sync.Mutex
	rows     []string
	failKind ports.JournalKind
}

func (m *fakeMirror) add(kind ports.JournalKind, row string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == m.failKind {
		return "", errors.New("sheet unavailable")
	}
	m.rows = append(m.rows, row)
	return fmt.Sprintf("row:%d", len(m.rows)), nil
}

func (m *fakeMirror) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	return m.add(ports.KindExpense, "expense:"+e.Category)
}

func (m *fakeMirror) AppendFuel(_ context.Context, f core.FuelRecord) (string, error) {
	return m.add(ports.KindFuel, "fuel:"+f.Station)
}

func (m *fakeMirror) AppendService(_ context.Context, _ core.ServiceRecord, title string) (string, error) {
	return m.add(ports.KindService, "service:"+title)
}

func (m *fakeMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	if config.PollInterval != time.Minute {
		t.Errorf("expected PollInterval 1m, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}

	p := NewSyncProcessor(nil, nil, SyncProcessorConfig{})
	if p.config != config {
		t.Errorf("zero config should fall back to defaults, got %+v", p.config)
	}
}

func TestSyncProcessor_ProcessPending(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	journal := NewJournalService(repo, nil, "v")
	if _, err := journal.AddExpense(ctx, core.Expense{Date: core.NewDate(2024, 1, 1), Amount: core.Money{Cents: 100}, Category: "Мойка"}); err != nil {
		t.Fatal(err)
	}
	if _, err := journal.AddServiceRecord(ctx, core.ServiceRecord{TemplateID: "oil", Date: core.NewDate(2024, 1, 1), Mileage: 10}); err != nil {
		t.Fatal(err)
	}
	fuel := NewFuelService(repo, nil, "v")
	if _, err := fuel.AddFuelRecord(ctx, core.FuelRecord{Date: core.NewDate(2024, 1, 2), Mileage: 20, Liters: 5, PricePerLiter: core.Money{Cents: 5000}, FuelType: core.FuelGas, Station: "WOG"}); err != nil {
		t.Fatal(err)
	}

	mirror := &fakeMirror{failKind: ports.KindFuel}
	p := NewSyncProcessor(repo, mirror, SyncProcessorConfig{PollInterval: time.Hour, BatchSize: 10})

	if n := p.ProcessPending(ctx); n != 2 {
		t.Errorf("ProcessPending() = %d, want 2", n)
	}
	if mirror.rows[0] != "expense:Мойка" || mirror.rows[1] != "service:Oil" {
		t.Errorf("rows = %v", mirror.rows)
	}

	pending, _ := repo.ListPendingSync(ctx, 0)
	if len(pending) != 1 || pending[0].Kind != ports.KindFuel {
		t.Errorf("pending = %v, want the failed fuel row", pending)
	}

	mirror.failKind = ""
	if n := p.ProcessPending(ctx); n != 1 {
		t.Errorf("retry ProcessPending() = %d, want 1", n)
	}
	if n := p.ProcessPending(ctx); n != 0 {
		t.Errorf("ProcessPending() with nothing pending = %d", n)
	}

	// already synced rows are skipped
	if err := p.SyncOne(ctx, pending[0]); err != nil {
		t.Errorf("SyncOne() on synced row error = %v", err)
	}
	if mirror.count() != 3 {
		t.Errorf("rows = %d, want 3", mirror.count())
	}

	if err := p.SyncOne(ctx, ports.JournalRef{Kind: "bogus", ID: "1"}); err == nil {
		t.Error("SyncOne() should reject unknown kinds")
	}
	if err := p.SyncOne(ctx, ports.JournalRef{Kind: ports.KindExpense, ID: "missing"}); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("SyncOne(missing) error = %v", err)
	}
}

func TestSyncProcessor_StartStop(t *testing.T) {
	repo := newTestRepo()
	p := NewSyncProcessor(repo, &fakeMirror{}, SyncProcessorConfig{PollInterval: 10 * time.Millisecond, BatchSize: 1})
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !p.IsRunning() {
		t.Error("processor should be running")
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should be stopped")
	}
}

func TestSyncProcessor_ConcurrentStop(t *testing.T) {
	p := NewSyncProcessor(newTestRepo(), &fakeMirror{}, SyncProcessorConfig{PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop() before Start() error = %v", err)
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.Stop(stopCtx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	}
	if p.IsRunning() {
		t.Error("processor should be stopped")
	}

	// restart after stop
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() after Stop() error = %v", err)
	}
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

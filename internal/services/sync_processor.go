package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"carnote/internal/ports"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending rows (default: 1m)
	PollInterval time.Duration

	// BatchSize is the max number of rows to mirror per poll cycle (default: 10)
	BatchSize int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: time.Minute,
		BatchSize:    10,
	}
}

// SyncProcessor mirrors journal rows into the spreadsheet. Rows arrive one
// at a time from AMQP through SyncOne, and a periodic sweep picks up
// anything that was missed.
type SyncProcessor struct {
	repo   ports.Repository
	mirror ports.JournalMirror
	config SyncProcessorConfig

	// serialises appends so a row is never written twice
	syncMu sync.Mutex

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(repo ports.Repository, mirror ports.JournalMirror, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	return &SyncProcessor{
		repo:   repo,
		mirror: mirror,
		config: config,
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stop, done := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stop, done)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion. It is safe
// to call more than once and from several goroutines.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.running = false
		close(p.stopCh)
	}
	done := p.doneCh
	p.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Sweep immediately on startup
	p.ProcessPending(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessPending(ctx)
		}
	}
}

// ProcessPending mirrors one batch of unsynced rows and returns how many
// were written.
func (p *SyncProcessor) ProcessPending(ctx context.Context) int {
	refs, err := p.repo.ListPendingSync(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending rows", "error", err)
		return 0
	}
	if len(refs) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(refs))

	synced := 0
	for _, ref := range refs {
		if ctx.Err() != nil {
			return synced
		}
		if err := p.SyncOne(ctx, ref); err != nil {
			slog.WarnContext(ctx, "Sync failed",
				"kind", ref.Kind,
				"id", ref.ID,
				"error", err)
			continue
		}
		synced++
	}
	return synced
}

// SyncOne appends a single journal row to the mirror and marks it synced.
// Rows already synced are skipped.
func (p *SyncProcessor) SyncOne(ctx context.Context, ref ports.JournalRef) error {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	done, err := p.repo.IsSynced(ctx, ref)
	if err != nil {
		return fmt.Errorf("check sync state: %w", err)
	}
	if done {
		slog.DebugContext(ctx, "Row already synced", "kind", ref.Kind, "id", ref.ID)
		return nil
	}

	var rowRef string
	switch ref.Kind {
	case ports.KindExpense:
		e, err := p.repo.GetExpense(ctx, ref.ID)
		if err != nil {
			return fmt.Errorf("get expense %s: %w", ref.ID, err)
		}
		rowRef, err = p.mirror.AppendExpense(ctx, e)
		if err != nil {
			return fmt.Errorf("append expense: %w", err)
		}
	case ports.KindFuel:
		f, err := p.repo.GetFuelRecord(ctx, ref.ID)
		if err != nil {
			return fmt.Errorf("get fuel record %s: %w", ref.ID, err)
		}
		rowRef, err = p.mirror.AppendFuel(ctx, f)
		if err != nil {
			return fmt.Errorf("append fuel record: %w", err)
		}
	case ports.KindService:
		id, err := strconv.ParseInt(ref.ID, 10, 64)
		if err != nil {
			return fmt.Errorf("parse service record id %q: %w", ref.ID, err)
		}
		r, err := p.repo.GetServiceRecord(ctx, id)
		if err != nil {
			return fmt.Errorf("get service record %d: %w", id, err)
		}
		title := r.TemplateID
		if t, err := p.repo.GetTemplate(ctx, r.TemplateID); err == nil {
			title = t.Title
		}
		rowRef, err = p.mirror.AppendService(ctx, r, title)
		if err != nil {
			return fmt.Errorf("append service record: %w", err)
		}
	default:
		return fmt.Errorf("unknown journal kind: %s", ref.Kind)
	}

	if err := p.repo.MarkSynced(ctx, ref, time.Now().UTC()); err != nil {
		// the row is in the sheet; a failed mark only risks a duplicate later
		slog.WarnContext(ctx, "Failed to mark row as synced",
			"kind", ref.Kind, "id", ref.ID, "error", err)
	}

	slog.InfoContext(ctx, "Synced journal row to Google Sheets",
		"kind", ref.Kind,
		"id", ref.ID,
		"sheets_ref", rowRef)
	return nil
}

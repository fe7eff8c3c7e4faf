package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carnote/internal/amqp"
	"carnote/internal/ports"
	"carnote/internal/services"
)

// SyncWorker mirrors journal rows announced on AMQP into Google Sheets.
type SyncWorker struct {
	repo      ports.Repository
	processor *services.SyncProcessor
	batchSize int
}

func NewSyncWorker(repo ports.Repository, processor *services.SyncProcessor, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = services.DefaultSyncProcessorConfig().BatchSize
	}
	return &SyncWorker{
		repo:      repo,
		processor: processor,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single journal sync message from AMQP.
// A message for a row that no longer exists is dropped.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.JournalSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"kind", msg.Kind,
		"id", msg.ID)

	err := w.processor.SyncOne(ctx, msg.Ref())
	if errors.Is(err, ports.ErrNotFound) {
		slog.WarnContext(ctx, "Dropping sync message for missing row",
			"kind", msg.Kind,
			"id", msg.ID,
			"error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync %s %s: %w", msg.Kind, msg.ID, err)
	}
	return nil
}

// StartupSyncCheck mirrors rows left pending while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.repo.ListPendingSync(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending rows for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending journal rows found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending journal rows on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, ref := range pending {
		if err := w.processor.SyncOne(ctx, ref); err != nil {
			slog.ErrorContext(ctx, "Failed to sync row during startup",
				"kind", ref.Kind, "id", ref.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}

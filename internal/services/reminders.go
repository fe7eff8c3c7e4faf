package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"carnote/internal/core"
	"carnote/internal/ports"
)

// ReminderProcessor publishes a reminder for every maintenance item that is
// due soon or overdue. An item is reminded at most once a day, and again at
// once when its status changes.
type ReminderProcessor struct {
	maintenance *MaintenanceService
	publisher   ports.EventPublisher
	vehicleID   string

	mu   sync.Mutex
	sent map[string]sentReminder // by template id
}

type sentReminder struct {
	status core.Status
	on     core.Date
}

func NewReminderProcessor(maintenance *MaintenanceService, publisher ports.EventPublisher, vehicleID string) *ReminderProcessor {
	return &ReminderProcessor{
		maintenance: maintenance,
		publisher:   publisher,
		vehicleID:   vehicleID,
		sent:        make(map[string]sentReminder),
	}
}

// Run builds today's board and returns the number of reminders sent. Without
// a publisher the due items are only logged.
func (p *ReminderProcessor) Run(ctx context.Context, today core.Date) (int, error) {
	board, err := p.maintenance.StatusBoard(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("build status board: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	due := append(append([]core.TemplateStatus{}, board.Overdue...), board.Soon...)
	active := make(map[string]bool, len(due))
	sent, skipped := 0, 0
	for _, row := range due {
		id := row.Template.ID
		active[id] = true
		if last, ok := p.sent[id]; ok && last.status == row.Status && last.on.Equal(today.Time) {
			skipped++
			continue
		}
		if p.publisher == nil {
			slog.InfoContext(ctx, "Maintenance due",
				"template", row.Template.Title,
				"status", row.Status)
			continue
		}
		if err := p.publisher.PublishReminder(ctx, p.vehicleID, row); err != nil {
			slog.ErrorContext(ctx, "Failed to publish reminder",
				"template_id", row.Template.ID,
				"error", err)
			continue
		}
		p.sent[id] = sentReminder{status: row.Status, on: today}
		sent++
	}
	for id := range p.sent {
		if !active[id] {
			delete(p.sent, id)
		}
	}

	slog.InfoContext(ctx, "Maintenance reminders processed",
		"overdue", len(board.Overdue),
		"soon", len(board.Soon),
		"sent", sent,
		"already_sent", skipped)
	return sent, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"carnote/internal/ports"
)

func syncTable(kind ports.JournalKind) (string, error) {
	switch kind {
	case ports.KindExpense:
		return "expenses", nil
	case ports.KindFuel:
		return "fuel_records", nil
	case ports.KindService:
		return "service_records", nil
	}
	return "", fmt.Errorf("unknown journal kind: %s", kind)
}

// ListPendingSync returns unsynced rows of the three journal tables, oldest first.
func (r *SQLiteRepository) ListPendingSync(ctx context.Context, limit int) ([]ports.JournalRef, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, id FROM (
			SELECT 'expense' AS kind, id, created_at AS at FROM expenses WHERE synced_at IS NULL
			UNION ALL
			SELECT 'fuel', id, created_at FROM fuel_records WHERE synced_at IS NULL
			UNION ALL
			SELECT 'service', CAST(id AS TEXT), added_at FROM service_records WHERE synced_at IS NULL
		)
		ORDER BY at, kind
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	defer rows.Close()

	out := make([]ports.JournalRef, 0)
	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		out = append(out, ports.JournalRef{Kind: ports.JournalKind(kind), ID: id})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) IsSynced(ctx context.Context, ref ports.JournalRef) (bool, error) {
	table, key, err := syncKey(ref)
	if err != nil {
		return false, err
	}
	var syncedAt sql.NullInt64
	err = r.db.QueryRowContext(ctx, `SELECT synced_at FROM `+table+` WHERE id = ?`, key).Scan(&syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%s %s: %w", ref.Kind, ref.ID, ports.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("read sync state: %w", err)
	}
	return syncedAt.Valid, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, ref ports.JournalRef, at time.Time) error {
	table, key, err := syncKey(ref)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE `+table+` SET synced_at = ? WHERE id = ?`, at.UTC().UnixNano(), key)
	if err != nil {
		return fmt.Errorf("mark %s synced: %w", ref.Kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", ref.Kind, ref.ID, ports.ErrNotFound)
	}
	slog.InfoContext(ctx, "Journal row marked as synced", "kind", ref.Kind, "id", ref.ID)
	return nil
}

func syncKey(ref ports.JournalRef) (string, any, error) {
	table, err := syncTable(ref.Kind)
	if err != nil {
		return "", nil, err
	}
	if ref.Kind != ports.KindService {
		return table, ref.ID, nil
	}
	id, err := strconv.ParseInt(ref.ID, 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("parse service record id %q: %w", ref.ID, err)
	}
	return table, id, nil
}

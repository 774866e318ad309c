package sql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecociel/autopublish/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResultRepo struct {
	pool *pgxpool.Pool
}

func NewResultRepo(pool *pgxpool.Pool) *ResultRepo {
	return &ResultRepo{pool: pool}
}

// Enqueue stores a result for delivery by the outbox runner.
func (repo *ResultRepo) Enqueue(ctx context.Context, result domain.PublishResult) error {
	const q = `
        INSERT INTO publish_result_outbox
          (draft_id, payload, due)
        VALUES
          ($1, $2, now())
        `
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result of %s: %w", result.DraftID, err)
	}
	if _, err := repo.pool.Exec(ctx, q, result.DraftID, payload); err != nil {
		return fmt.Errorf("insert result of %s: %w", result.DraftID, err)
	}
	return nil
}

// ClaimDue locks up to limit due entries. Concurrent runners skip rows
// another runner holds.
func (repo *ResultRepo) ClaimDue(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
	const q = `
    UPDATE publish_result_outbox
    SET due = now() + interval '1 minute'
    WHERE id IN (
        SELECT id FROM publish_result_outbox
        WHERE due <= now()
        ORDER BY due
        LIMIT $1
        FOR UPDATE SKIP LOCKED
    )
    RETURNING id, payload, attempts, last_error, due
     `
	rows, err := repo.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query claim due results: %w", err)
	}
	defer rows.Close()

	var entries []domain.OutboxEntry
	for rows.Next() {
		var (
			entry   domain.OutboxEntry
			payload []byte
		)
		if err := rows.Scan(&entry.ID, &payload, &entry.Attempts, &entry.LastError, &entry.Due); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &entry.Result); err != nil {
			return nil, fmt.Errorf("decode outbox entry %d: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows claim due results: %w", err)
	}
	return entries, nil
}

func (repo *ResultRepo) Delete(ctx context.Context, id int64) error {
	const q = `
      DELETE FROM publish_result_outbox WHERE id = $1`
	if _, err := repo.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("delete outbox entry %d: %w", id, err)
	}
	return nil
}

func (repo *ResultRepo) Reschedule(ctx context.Context, entry domain.OutboxEntry) error {
	const q = `
      UPDATE publish_result_outbox
      SET attempts = $2, last_error = $3, due = $4
      WHERE id = $1`
	if _, err := repo.pool.Exec(ctx, q, entry.ID, entry.Attempts, entry.LastError, entry.Due); err != nil {
		return fmt.Errorf("reschedule outbox entry %d: %w", entry.ID, err)
	}
	return nil
}

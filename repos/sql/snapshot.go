package sql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecociel/autopublish/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

// SaveSnapshot keeps the latest aggregate of a page load.
func (repo *SnapshotRepo) SaveSnapshot(ctx context.Context, s domain.Snapshot) error {
	const q = `
        INSERT INTO page_snapshot
          (page_load_id, url, started_at, updated_at, data)
        VALUES
          ($1, $2, $3, $4, $5)
        ON CONFLICT (page_load_id) DO UPDATE
          SET url = EXCLUDED.url, updated_at = EXCLUDED.updated_at, data = EXCLUDED.data
        `
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.PageLoadID, err)
	}
	if _, err := repo.pool.Exec(ctx, q, s.PageLoadID, s.URL, s.StartedAt, s.UpdatedAt, data); err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", s.PageLoadID, err)
	}
	return nil
}

package replaystore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements webhooks.DeliveryStore over a shared table, giving
// multi-instance deployments one replay record per delivery id. The insert
// is atomic at the database: ON CONFLICT DO NOTHING makes exactly one of any
// set of concurrent inserts report success.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS webhook_deliveries (
  delivery_id TEXT PRIMARY KEY,
  received_at TIMESTAMPTZ NOT NULL
)`)
	return err
}

func (s *Postgres) InsertIfAbsent(ctx context.Context, deliveryID string, receivedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
INSERT INTO webhook_deliveries (delivery_id, received_at)
VALUES ($1, $2)
ON CONFLICT (delivery_id) DO NOTHING`, deliveryID, receivedAt.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) SweepBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM webhook_deliveries WHERE received_at < $1`, cutoff.UTC())
	return err
}

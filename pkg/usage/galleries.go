package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GalleryCounter counts galleries in PostgreSQL.
type GalleryCounter struct {
	db Querier
}

// NewGalleryCounter counts galleries through db. Panics if db is nil.
func NewGalleryCounter(db Querier) *GalleryCounter {
	if db == nil {
		panic("usage: querier cannot be nil")
	}
	return &GalleryCounter{db: db}
}

// CountSince returns how many galleries the user created at or after since.
func (c *GalleryCounter) CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	err := c.db.QueryRow(ctx,
		`SELECT count(*) FROM galleries WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&n)
	if err != nil {
		return 0, errors.Join(ErrGalleriesUnavailable, err)
	}
	return n, nil
}

package credit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// Consume performs the date rollover and the compare-and-increment in one
// statement so concurrent fetches by the same user cannot double-spend.
func (r *PostgresRepo) Consume(ctx context.Context, userID string, day time.Time, limit int) (int, error) {
	const sql = `
		INSERT INTO fetch_credits (user_id, window_date, used)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id) DO UPDATE SET
			used = CASE WHEN fetch_credits.window_date = $2 THEN fetch_credits.used + 1 ELSE 1 END,
			window_date = $2
		WHERE fetch_credits.window_date <> $2 OR fetch_credits.used < $3
		RETURNING used`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var used int
	err := r.db.QueryRow(timeoutCtx, sql, userID, day, limit).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrExhausted
		}
		return 0, err
	}
	return used, nil
}

func (r *PostgresRepo) Used(ctx context.Context, userID string, day time.Time) (int, error) {
	const sql = `SELECT used, window_date FROM fetch_credits WHERE user_id = $1`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var used int
	var windowDate time.Time
	err := r.db.QueryRow(timeoutCtx, sql, userID).Scan(&used, &windowDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	// A stale window counts as unused until the next consume rolls it over.
	if !windowDate.Equal(day) {
		return 0, nil
	}
	return used, nil
}

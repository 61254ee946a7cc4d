package quote

import (
	"context"
	"time"

	"github.com/google/uuid"
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

const insertSQL = `
	INSERT INTO market_quotes (id, car_id, source, price, currency, price_inr,
	                           source_url, title, seller, model_name, manufacturer, scale,
	                           fetched_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// InsertBatch records all quotes of one fetch run. Callers must have stamped
// every quote with the same FetchedAt so batch grouping stays intact.
func (r *PostgresRepo) InsertBatch(ctx context.Context, quotes []MarketQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range quotes {
		q := &quotes[i]
		if q.ID == "" {
			q.ID = uuid.New().String()
		}
		batch.Queue(insertSQL,
			q.ID, q.CarID, q.Source, q.Price, q.Currency, q.PriceINR,
			q.SourceURL, q.Title, q.Seller, q.ModelName, q.Manufacturer, q.Scale,
			q.FetchedAt,
		)
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.db.SendBatch(timeoutCtx, batch).Close()
}

const selectCols = `id, car_id, source, price, currency, price_inr,
	                source_url, title, seller, model_name, manufacturer, scale, fetched_at`

func (r *PostgresRepo) ListByCar(ctx context.Context, carID string) ([]MarketQuote, error) {
	sql := `SELECT ` + selectCols + ` FROM market_quotes WHERE car_id = $1 ORDER BY fetched_at DESC, id`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, sql, carID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuotes(rows)
}

// LatestBatch returns only the quotes sharing the most recent fetch
// timestamp, so averages never mix runs.
func (r *PostgresRepo) LatestBatch(ctx context.Context, carID string) ([]MarketQuote, error) {
	sql := `SELECT ` + selectCols + `
		FROM market_quotes
		WHERE car_id = $1
		  AND fetched_at = (SELECT MAX(fetched_at) FROM market_quotes WHERE car_id = $1)
		ORDER BY id`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, sql, carID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuotes(rows)
}

func (r *PostgresRepo) DeleteByCar(ctx context.Context, carID string) (int64, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM market_quotes WHERE car_id = $1`, carID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanQuotes(rows pgx.Rows) ([]MarketQuote, error) {
	var out []MarketQuote
	for rows.Next() {
		var q MarketQuote
		if err := rows.Scan(
			&q.ID, &q.CarID, &q.Source, &q.Price, &q.Currency, &q.PriceINR,
			&q.SourceURL, &q.Title, &q.Seller, &q.ModelName, &q.Manufacturer, &q.Scale,
			&q.FetchedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

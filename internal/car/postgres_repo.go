package car

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

const carCols = `id, user_id, model_name, manufacturer, scale, purchase_date,
	price, shipping_cost, advance_payment, remaining_payment,
	seller_name, website_url, delivery_due_date, delivered_date,
	tracking_id, delivery_service, status, created_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, c *Car) error {
	const sql = `
		INSERT INTO cars (id, user_id, model_name, manufacturer, scale, purchase_date,
		                  price, shipping_cost, advance_payment, remaining_payment,
		                  seller_name, website_url, delivery_due_date, delivered_date,
		                  tracking_id, delivery_service, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(timeoutCtx, sql,
		c.ID, c.UserID, c.ModelName, c.Manufacturer, c.Scale, c.PurchaseDate,
		c.Price, c.ShippingCost, c.AdvancePayment, c.RemainingPayment,
		c.SellerName, c.WebsiteURL, c.DeliveryDueDate, c.DeliveredDate,
		c.TrackingID, c.DeliveryService, c.Status,
	)
	return err
}

func (r *PostgresRepo) GetByID(ctx context.Context, id, userID string) (Car, error) {
	sql := `SELECT ` + carCols + ` FROM cars WHERE id = $1 AND user_id = $2`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	row := r.db.QueryRow(timeoutCtx, sql, id, userID)

	c, err := scanCar(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Car{}, ErrNotFound
		}
		return Car{}, err
	}
	return c, nil
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]Car, error) {
	sql := `SELECT ` + carCols + ` FROM cars WHERE user_id = $1 ORDER BY purchase_date DESC, created_at DESC`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Update(ctx context.Context, c *Car) error {
	const sql = `
		UPDATE cars SET
			model_name = $3, manufacturer = $4, scale = $5, purchase_date = $6,
			price = $7, shipping_cost = $8, advance_payment = $9, remaining_payment = $10,
			seller_name = $11, website_url = $12, delivery_due_date = $13, delivered_date = $14,
			tracking_id = $15, delivery_service = $16, status = $17, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, sql,
		c.ID, c.UserID, c.ModelName, c.Manufacturer, c.Scale, c.PurchaseDate,
		c.Price, c.ShippingCost, c.AdvancePayment, c.RemainingPayment,
		c.SellerName, c.WebsiteURL, c.DeliveryDueDate, c.DeliveredDate,
		c.TrackingID, c.DeliveryService, c.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id, userID string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM cars WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCar(row pgx.Row) (Car, error) {
	var c Car
	err := row.Scan(
		&c.ID, &c.UserID, &c.ModelName, &c.Manufacturer, &c.Scale, &c.PurchaseDate,
		&c.Price, &c.ShippingCost, &c.AdvancePayment, &c.RemainingPayment,
		&c.SellerName, &c.WebsiteURL, &c.DeliveryDueDate, &c.DeliveredDate,
		&c.TrackingID, &c.DeliveryService, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// Package archive keeps a Postgres copy of every order for reporting and
// lookups after the live store has been cleaned out.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MyZenaa/pgpbl-jamubae/internal/domain"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/database"
	apperrors "github.com/MyZenaa/pgpbl-jamubae/pkg/errors"
)

// Repository reads and writes the order archive table.
type Repository struct {
	pool database.DBTX
}

// NewRepository creates a PostgreSQL-backed archive repository.
func NewRepository(pool database.DBTX) *Repository {
	return &Repository{pool: pool}
}

// UpsertOrder inserts the order or refreshes the archived copy.
func (r *Repository) UpsertOrder(ctx context.Context, o *domain.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}
	fulfillmentJSON, err := json.Marshal(o.Fulfillment)
	if err != nil {
		return fmt.Errorf("marshal fulfillment: %w", err)
	}

	query := `
		INSERT INTO order_archive (id, customer_name, customer_phone, method, status, subtotal, shipping_cost, grand_total, items, fulfillment, note, created_at, updated_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (id) DO UPDATE SET
			customer_name = EXCLUDED.customer_name,
			customer_phone = EXCLUDED.customer_phone,
			method = EXCLUDED.method,
			status = EXCLUDED.status,
			subtotal = EXCLUDED.subtotal,
			shipping_cost = EXCLUDED.shipping_cost,
			grand_total = EXCLUDED.grand_total,
			items = EXCLUDED.items,
			fulfillment = EXCLUDED.fulfillment,
			note = EXCLUDED.note,
			updated_at = EXCLUDED.updated_at,
			archived_at = NOW()`

	_, err = r.pool.Exec(ctx, query,
		o.ID,
		o.CustomerName,
		o.CustomerPhone,
		string(o.Fulfillment.Method),
		string(o.Status),
		o.Subtotal,
		o.Fulfillment.ShippingCost(),
		o.GrandTotal(),
		itemsJSON,
		fulfillmentJSON,
		o.Note,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert archived order: %w", err)
	}

	return nil
}

// DeleteOrder removes an order from the archive.
func (r *Repository) DeleteOrder(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM order_archive WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete archived order: %w", err)
	}
	return nil
}

// GetOrder returns one archived order by ID.
func (r *Repository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, customer_name, customer_phone, status, subtotal, items, fulfillment, note, created_at, updated_at
		FROM order_archive
		WHERE id = $1`

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get archived order: %w", err)
	}
	return o, nil
}

// ListByStatus returns archived orders in a given stage, newest first.
func (r *Repository) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Order, error) {
	query := `
		SELECT id, customer_name, customer_phone, status, subtotal, items, fulfillment, note, created_at, updated_at
		FROM order_archive
		WHERE status = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list archived orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archived order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived orders: %w", err)
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o               domain.Order
		status          string
		itemsJSON       []byte
		fulfillmentJSON []byte
	)

	err := row.Scan(
		&o.ID,
		&o.CustomerName,
		&o.CustomerPhone,
		&status,
		&o.Subtotal,
		&itemsJSON,
		&fulfillmentJSON,
		&o.Note,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = domain.Status(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(fulfillmentJSON, &o.Fulfillment); err != nil {
		return nil, fmt.Errorf("unmarshal fulfillment: %w", err)
	}

	return &o, nil
}

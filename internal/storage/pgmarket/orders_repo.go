package pgmarket

import (
	"context"
	"time"

	"github.com/ecofinds/greencore/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) CreateOrder(ctx context.Context, buyerID uint64, status string) (*models.Order, error) {
	if status == "" {
		status = models.OrderStatusPending
	}
	now := time.Now().UTC()

	var o models.Order
	err := s.db.QueryRow(ctx, `
INSERT INTO orders (buyer_id, status, created_at, updated_at)
VALUES ($1,$2,$3,$3)
RETURNING id, buyer_id, status, created_at, updated_at
`, buyerID, status, now).Scan(&o.ID, &o.BuyerID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert order")
	}
	return &o, nil
}

func (s *Storage) GetOrder(ctx context.Context, id uint64) (*models.Order, error) {
	var o models.Order
	err := s.db.QueryRow(ctx, `
SELECT id, buyer_id, status, created_at, updated_at FROM orders WHERE id = $1
`, id).Scan(&o.ID, &o.BuyerID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return &o, nil
}

func (s *Storage) UpdateOrderStatus(ctx context.Context, id uint64, status string) error {
	_, err := s.db.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return errors.Wrap(err, "update order status")
}

package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/topup-shop/internal/domain/models"
)

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrder вставляет новый заказ и заполняет ID и CreatedAt.
	CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error
	// GetOrdersByUserID возвращает заказы пользователя, новые первыми.
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	// ListOrders возвращает все заказы для админки.
	ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = `id, user_id, shop, item, price, payment_method, recipient_name, recipient_phone,
	game_id, server_id, screenshot_url, status, created_at`

func (r *orderRepository) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `INSERT INTO orders (user_id, shop, item, price, payment_method, recipient_name, recipient_phone,
	          game_id, server_id, screenshot_url, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query,
		order.UserID, order.Shop, order.Item, order.Price, order.PaymentMethod,
		order.RecipientName, order.RecipientPhone, order.GameID, order.ServerID,
		order.ScreenshotURL, order.Status,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	return r.query(ctx, "SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
}

func (r *orderRepository) ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	limit, offset = normalizePage(limit, offset)
	return r.query(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2", limit, offset)
}

func (r *orderRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o := &models.Order{}
		if err := rows.Scan(&o.ID, &o.UserID, &o.Shop, &o.Item, &o.Price, &o.PaymentMethod,
			&o.RecipientName, &o.RecipientPhone, &o.GameID, &o.ServerID, &o.ScreenshotURL,
			&o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/topup-shop/internal/domain/models"
)

// ProductStorage: каталог позиций магазинов.
type ProductStorage interface {
	GetProduct(ctx context.Context, tx *sql.Tx, shop, name string) (*models.Product, error)
	ListProducts(ctx context.Context, shop string) ([]*models.Product, error)
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

// GetProduct читает позицию внутри транзакции заказа, чтобы цена не разошлась со списанием
func (r *productRepository) GetProduct(ctx context.Context, tx *sql.Tx, shop, name string) (*models.Product, error) {
	query := "SELECT id, shop, name, price FROM products WHERE shop = $1 AND name = $2"
	p := &models.Product{}
	err := tx.QueryRowContext(ctx, query, shop, name).Scan(&p.ID, &p.Shop, &p.Name, &p.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *productRepository) ListProducts(ctx context.Context, shop string) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, shop, name, price FROM products WHERE shop = $1 ORDER BY price, id", shop)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(&p.ID, &p.Shop, &p.Name, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

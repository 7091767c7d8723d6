package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

// ProductCatalog работает с таблицей products.
type ProductCatalog struct {
	store *Store
}

// NewProductCatalog создаёт каталог товаров.
func NewProductCatalog(store *Store) *ProductCatalog {
	return &ProductCatalog{store: store}
}

// FindAllByID возвращает найденные товары в порядке запроса.
func (c *ProductCatalog) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := c.store.executor(ctx).Query(ctx, `
		SELECT id, quantity, price_minor
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	found, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		var p domain.Product
		err := row.Scan(&p.ID, &p.Quantity, &p.PriceMinor)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}

	index := domain.IndexProducts(found)
	result := make([]domain.Product, 0, len(found))
	for _, id := range ids {
		if p, ok := index[id]; ok {
			result = append(result, p)
			delete(index, id)
		}
	}
	return result, nil
}

// UpdateQuantity применяет обновления одной транзакцией.
// Строка обновляется только если остаток равен ExpectedQuantity.
func (c *ProductCatalog) UpdateQuantity(ctx context.Context, updates []domain.StockUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	return c.store.withinTx(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()

		ex := c.store.executor(ctx)

		batch := &pgx.Batch{}
		for _, u := range updates {
			batch.Queue(`
				UPDATE products
				SET quantity = $2, updated_at = NOW()
				WHERE id = $1 AND quantity = $3
			`, u.ProductID, u.Quantity, u.ExpectedQuantity)
		}

		results := ex.SendBatch(ctx, batch)
		var missed []domain.StockUpdate
		for _, u := range updates {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return fmt.Errorf("update product %s quantity: %w", u.ProductID, err)
			}
			if tag.RowsAffected() == 0 {
				missed = append(missed, u)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("close update batch: %w", err)
		}

		if len(missed) == 0 {
			return nil
		}
		return c.explainMiss(ctx, ex, missed[0])
	})
}

// explainMiss различает отсутствующий товар и изменившийся остаток.
func (c *ProductCatalog) explainMiss(ctx context.Context, ex executor, u domain.StockUpdate) error {
	var current int32
	err := ex.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, u.ProductID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.ProductNotFoundError{ProductID: u.ProductID}
		}
		return fmt.Errorf("select product %s: %w", u.ProductID, err)
	}
	return fmt.Errorf("%w: product %s has %d, expected %d",
		domain.ErrStockConflict, u.ProductID, current, u.ExpectedQuantity)
}

// Upsert добавляет товар или заменяет его остаток и цену.
func (c *ProductCatalog) Upsert(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := c.store.executor(ctx).Exec(ctx, `
		INSERT INTO products (id, quantity, price_minor, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET quantity = EXCLUDED.quantity,
		    price_minor = EXCLUDED.price_minor,
		    updated_at = EXCLUDED.updated_at
	`, product.ID, product.Quantity, product.PriceMinor); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

var _ domain.ProductCatalog = (*ProductCatalog)(nil)

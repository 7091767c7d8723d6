package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

// ProductCatalog — in-memory каталог товаров с остатками.
type ProductCatalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewProductCatalog создаёт каталог с начальным набором товаров.
func NewProductCatalog(products ...domain.Product) *ProductCatalog {
	c := &ProductCatalog{products: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// Upsert добавляет товар или заменяет его остаток и цену.
func (c *ProductCatalog) Upsert(product domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = product
}

// Get возвращает товар по идентификатору.
func (c *ProductCatalog) Get(id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	return p, ok
}

// FindAllByID возвращает найденные товары в порядке запроса, без повторов.
func (c *ProductCatalog) FindAllByID(_ context.Context, ids []string) ([]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Product, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := c.products[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// UpdateQuantity применяет все обновления или ни одного.
// Текущий остаток каждого товара должен совпадать с ExpectedQuantity.
func (c *ProductCatalog) UpdateQuantity(ctx context.Context, updates []domain.StockUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range updates {
		current, ok := c.products[u.ProductID]
		if !ok {
			return &domain.ProductNotFoundError{ProductID: u.ProductID}
		}
		if u.Quantity < 0 {
			return fmt.Errorf("product %s: negative quantity %d", u.ProductID, u.Quantity)
		}
		if current.Quantity != u.ExpectedQuantity {
			return fmt.Errorf("%w: product %s has %d, expected %d",
				domain.ErrStockConflict, u.ProductID, current.Quantity, u.ExpectedQuantity)
		}
	}

	for _, u := range updates {
		p := c.products[u.ProductID]
		onRollback(ctx, c.restoreQuantity(u.ProductID, p.Quantity))
		p.Quantity = u.Quantity
		c.products[u.ProductID] = p
	}
	return nil
}

// restoreQuantity возвращает остаток товара, не трогая его цену и другие товары.
func (c *ProductCatalog) restoreQuantity(id string, quantity int32) func() {
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if p, ok := c.products[id]; ok {
			p.Quantity = quantity
			c.products[id] = p
		}
	}
}

var _ domain.ProductCatalog = (*ProductCatalog)(nil)

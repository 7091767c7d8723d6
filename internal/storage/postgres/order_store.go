package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

// OrderStore — PostgreSQL-реализация domain.OrderStore.
type OrderStore struct {
	store *Store
}

// NewOrderStore создаёт хранилище заказов.
func NewOrderStore(store *Store) *OrderStore {
	return &OrderStore{store: store}
}

// Create вставляет заказ и позиции в одной транзакции.
func (s *OrderStore) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	order := domain.Order{
		ID:          uuid.NewString(),
		CustomerID:  in.Customer.ID,
		AmountMinor: in.AmountMinor(),
		Items:       make([]domain.OrderItem, 0, len(in.Items)),
		CreatedAt:   now,
	}
	for _, item := range in.Items {
		item.ID = uuid.NewString()
		item.OrderID = order.ID
		item.CreatedAt = now
		order.Items = append(order.Items, item)
	}

	err := s.store.withinTx(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()

		batch := &pgx.Batch{}
		batch.Queue(`
			INSERT INTO orders (id, customer_id, amount_minor, created_at)
			VALUES ($1, $2, $3, $4)
		`, order.ID, order.CustomerID, order.AmountMinor, order.CreatedAt)
		for i, item := range order.Items {
			batch.Queue(`
				INSERT INTO order_items (id, order_id, line_no, product_id, qty, price_minor, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, item.ID, order.ID, i, item.ProductID, item.Qty, item.PriceMinor, item.CreatedAt)
		}

		if err := s.store.executor(ctx).SendBatch(ctx, batch).Close(); err != nil {
			switch {
			case isUniqueViolation(err):
				return domain.ErrOrderAlreadyExists
			case isForeignKeyViolation(err):
				return fmt.Errorf("insert order references unknown customer or product: %w", err)
			default:
				return fmt.Errorf("insert order: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ex := s.store.executor(ctx)

	var order domain.Order
	err := ex.QueryRow(ctx, `
		SELECT id, customer_id, amount_minor, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.CustomerID, &order.AmountMinor, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.CreatedAt = order.CreatedAt.UTC()

	items, err := loadItems(ctx, ex, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func loadItems(ctx context.Context, ex executor, orderID string) ([]domain.OrderItem, error) {
	rows, err := ex.Query(ctx, `
		SELECT id, order_id, product_id, qty, price_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY line_no ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderItem, error) {
		var item domain.OrderItem
		err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Qty, &item.PriceMinor, &item.CreatedAt)
		item.CreatedAt = item.CreatedAt.UTC()
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan order item: %w", err)
	}
	return items, nil
}

var _ domain.OrderStore = (*OrderStore)(nil)

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

// OrderStore хранит заказы в памяти.
type OrderStore struct {
	mu    sync.RWMutex
	items map[string]domain.Order
	now   func() time.Time
}

// NewOrderStore возвращает in-memory хранилище заказов для локальной разработки и тестов.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		items: make(map[string]domain.Order),
		now:   time.Now,
	}
}

// Create назначает идентификаторы заказу и позициям и сохраняет заказ.
func (s *OrderStore) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	now := s.now().UTC()
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[order.ID]; exists {
		return domain.Order{}, domain.ErrOrderAlreadyExists
	}
	s.items[order.ID] = order
	onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.items, order.ID)
	})
	return cloneOrder(order), nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (s *OrderStore) Get(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByCustomer возвращает заказы клиента, новые первыми; limit > 0 ограничивает выборку.
func (s *OrderStore) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, len(s.items))
	for _, order := range s.items {
		if order.CustomerID != customerID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count возвращает количество сохранённых заказов.
func (s *OrderStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// cloneOrder копирует позиции, чтобы вызывающий не мог изменить сохранённый заказ.
func cloneOrder(order domain.Order) domain.Order {
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	return order
}

var _ domain.OrderStore = (*OrderStore)(nil)

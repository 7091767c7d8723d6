package domain

import (
	"fmt"
	"math"
	"time"
)

// RequestedItem — позиция во входящем запросе: товар и желаемое количество.
type RequestedItem struct {
	ProductID string
	Qty       int32
}

// OrderRequest — входные данные для создания заказа. Не сохраняется.
type OrderRequest struct {
	CustomerID string
	Items      []RequestedItem
}

// Validate проверяет форму запроса. Возвращает первую найденную ошибку.
func (r OrderRequest) Validate() error {
	if r.CustomerID == "" {
		return ErrCustomerRequired
	}

	seen := make(map[string]struct{}, len(r.Items))
	for _, item := range r.Items {
		if item.ProductID == "" {
			return ErrProductIDRequired
		}
		if item.Qty <= 0 {
			return ErrItemQtyInvalid
		}
		if _, dup := seen[item.ProductID]; dup {
			return ErrDuplicateProduct
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

// ProductIDs возвращает идентификаторы товаров в порядке запроса.
func (r OrderRequest) ProductIDs() []string {
	ids := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID позиции назначает хранилище заказов.
	ID      string
	OrderID string
	// ProductID ссылается на товар каталога.
	ProductID string
	Qty       int32
	// PriceMinor фиксирует цену за единицу на момент оформления, в минимальных денежных единицах.
	// После создания позиции не меняется.
	PriceMinor int64
	CreatedAt  time.Time
}

// NewOrder передаётся в OrderStore.Create.
type NewOrder struct {
	Customer Customer
	Items    []OrderItem
}

// AmountMinor считает сумму заказа по позициям: qty * price.
// Позиции должны пройти ItemsTotal, иначе сумма может переполниться.
func (n NewOrder) AmountMinor() int64 {
	total, _ := ItemsTotal(n.Items)
	return total
}

// Order агрегирует сохранённый заказ и его позиции.
type Order struct {
	ID          string
	CustomerID  string
	AmountMinor int64
	Items       []OrderItem
	CreatedAt   time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}
	if total, err := ItemsTotal(o.Items); err != nil {
		errs = append(errs, err)
	} else if total != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// ItemsTotal считает сумму позиций и возвращает ErrAmountOverflow,
// если произведение или итог выходят за пределы int64.
func ItemsTotal(items []OrderItem) (int64, error) {
	var total int64
	for _, item := range items {
		line, ok := mulInt64(int64(item.Qty), item.PriceMinor)
		if !ok {
			return 0, fmt.Errorf("%w: product %s", ErrAmountOverflow, item.ProductID)
		}
		if total, ok = addInt64(total, line); !ok {
			return 0, fmt.Errorf("%w: product %s", ErrAmountOverflow, item.ProductID)
		}
	}
	return total, nil
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	return c, c/b == a
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

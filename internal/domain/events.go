package domain

import "time"

// OrderEventItem — позиция заказа в событии.
type OrderEventItem struct {
	ItemID     string `json:"item_id"`
	ProductID  string `json:"product_id"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

// OrderEvent — полезная нагрузка событий заказа в outbox.
type OrderEvent struct {
	EventType   string           `json:"event_type"`
	OrderID     string           `json:"order_id"`
	CustomerID  string           `json:"customer_id"`
	AmountMinor int64            `json:"amount_minor"`
	Items       []OrderEventItem `json:"items"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NewOrderCreatedEvent собирает событие order.created по сохранённому заказу.
func NewOrderCreatedEvent(order Order, ts time.Time) OrderEvent {
	items := make([]OrderEventItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderEventItem{
			ItemID:     item.ID,
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	return OrderEvent{
		EventType:   EventTypeOrderCreated,
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		AmountMinor: order.AmountMinor,
		Items:       items,
		Timestamp:   ts.UTC(),
	}
}

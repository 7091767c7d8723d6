package domain

import (
	"context"
	"time"
)

// CustomerDirectory отвечает на вопрос, существует ли клиент.
type CustomerDirectory interface {
	// FindByID возвращает клиента или ErrCustomerNotFound.
	FindByID(ctx context.Context, id string) (Customer, error)
}

// ProductCatalog — каталог товаров с остатками.
type ProductCatalog interface {
	// FindAllByID возвращает только найденные товары; результат может быть короче запроса.
	FindAllByID(ctx context.Context, ids []string) ([]Product, error)
	// UpdateQuantity применяет все обновления или ни одного.
	// Если текущий остаток товара отличается от ExpectedQuantity, возвращает ErrStockConflict.
	UpdateQuantity(ctx context.Context, updates []StockUpdate) error
}

// OrderStore сохраняет заказы вместе с позициями.
type OrderStore interface {
	// Create назначает идентификаторы заказу и позициям и возвращает сохранённый заказ.
	Create(ctx context.Context, order NewOrder) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
}

// TxManager выполняет fn в одной транзакции. Ошибка fn откатывает все изменения,
// сделанные через ctx, переданный в fn.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// WorkflowStep задаёт константы шагов оформления заказа для метрик, логов и трейсов.
type WorkflowStep string

const (
	StepValidateRequest  WorkflowStep = "validate_request"
	StepValidateCustomer WorkflowStep = "validate_customer"
	StepFetchProducts    WorkflowStep = "fetch_products"
	StepCheckStock       WorkflowStep = "check_stock"
	StepPersistOrder     WorkflowStep = "persist_order"
	StepUpdateStock      WorkflowStep = "update_stock"
	StepEnqueueEvent     WorkflowStep = "enqueue_event"
)

const (
	// AggregateTypeOrder — тип агрегата для событий заказа в outbox.
	AggregateTypeOrder = "order"
	// EventTypeOrderCreated публикуется после успешного оформления заказа.
	EventTypeOrderCreated = "order.created"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

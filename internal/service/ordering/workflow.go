package ordering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
	"github.com/vladislavdragonenkov/ordering/internal/metrics"
)

// TracerName — имя инструментирования для спанов оформления заказа.
const TracerName = "github.com/vladislavdragonenkov/ordering/internal/service/ordering"

// Option настраивает Workflow.
type Option func(*Workflow)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetrics включает запись метрик.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

// WithTracer задаёт tracer. По умолчанию используется глобальный TracerProvider.
func WithTracer(tracer trace.Tracer) Option {
	return func(w *Workflow) {
		if tracer != nil {
			w.tracer = tracer
		}
	}
}

// WithTxManager включает транзакцию вокруг сохранения заказа, списания остатков и outbox.
func WithTxManager(tx domain.TxManager) Option {
	return func(w *Workflow) {
		w.tx = tx
	}
}

// WithOutbox включает запись события order.created в outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(w *Workflow) {
		w.outbox = outbox
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		if now != nil {
			w.now = now
		}
	}
}

// Workflow оформляет заказ: проверяет клиента, товары и остатки,
// сохраняет заказ с ценами на момент оформления и списывает остатки.
type Workflow struct {
	customers domain.CustomerDirectory
	catalog   domain.ProductCatalog
	orders    domain.OrderStore
	outbox    domain.OutboxRepository
	tx        domain.TxManager
	logger    *log.Entry
	metrics   *metrics.OrderMetrics
	tracer    trace.Tracer
	now       func() time.Time
}

// NewWorkflow создаёт Workflow. Все три хранилища обязательны.
func NewWorkflow(
	customers domain.CustomerDirectory,
	catalog domain.ProductCatalog,
	orders domain.OrderStore,
	opts ...Option,
) (*Workflow, error) {
	if customers == nil {
		return nil, errors.New("ordering: customer directory is required")
	}
	if catalog == nil {
		return nil, errors.New("ordering: product catalog is required")
	}
	if orders == nil {
		return nil, errors.New("ordering: order store is required")
	}

	w := &Workflow{
		customers: customers,
		catalog:   catalog,
		orders:    orders,
		logger:    log.WithField("component", "ordering"),
		tracer:    otel.Tracer(TracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// CreateOrder оформляет заказ по запросу и возвращает сохранённый заказ.
//
// Ошибки проверки (domain.IsValidationError) возвращаются до каких-либо изменений.
// Без TxManager сбой после сохранения заказа оставляет заказ без списания остатков.
func (w *Workflow) CreateOrder(ctx context.Context, req domain.OrderRequest) (order domain.Order, err error) {
	start := w.now()
	ctx, span := w.tracer.Start(ctx, "ordering.CreateOrder", trace.WithAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("order.items", len(req.Items)),
	))
	if w.metrics != nil {
		w.metrics.RecordInFlightStarted()
	}
	defer func() {
		w.finish(span, start, req, order, err)
	}()

	if err = w.step(ctx, domain.StepValidateRequest, func(context.Context) error {
		return req.Validate()
	}); err != nil {
		return domain.Order{}, err
	}

	var customer domain.Customer
	if err = w.step(ctx, domain.StepValidateCustomer, func(ctx context.Context) (stepErr error) {
		customer, stepErr = w.findCustomer(ctx, req.CustomerID)
		return stepErr
	}); err != nil {
		return domain.Order{}, err
	}

	var snapshot map[string]domain.Product
	if err = w.step(ctx, domain.StepFetchProducts, func(ctx context.Context) (stepErr error) {
		snapshot, stepErr = w.fetchProducts(ctx, req)
		return stepErr
	}); err != nil {
		return domain.Order{}, err
	}

	var items []domain.OrderItem
	if err = w.step(ctx, domain.StepCheckStock, func(context.Context) (stepErr error) {
		items, stepErr = buildItems(req, snapshot)
		return stepErr
	}); err != nil {
		return domain.Order{}, err
	}

	persist := func(ctx context.Context) error {
		created, persistErr := w.persist(ctx, customer, items, snapshot)
		if persistErr != nil {
			return persistErr
		}
		order = created
		return nil
	}
	if w.tx != nil {
		err = w.tx.WithinTx(ctx, persist)
	} else {
		err = persist(ctx)
	}
	if err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

// persist сохраняет заказ, списывает остатки и пишет событие в outbox.
func (w *Workflow) persist(
	ctx context.Context,
	customer domain.Customer,
	items []domain.OrderItem,
	snapshot map[string]domain.Product,
) (domain.Order, error) {
	var order domain.Order
	err := w.step(ctx, domain.StepPersistOrder, func(ctx context.Context) error {
		created, err := w.orders.Create(ctx, domain.NewOrder{Customer: customer, Items: items})
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		order = created
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	err = w.step(ctx, domain.StepUpdateStock, func(ctx context.Context) error {
		updates, err := stockUpdates(order, snapshot)
		if err != nil {
			return err
		}
		if err := w.catalog.UpdateQuantity(ctx, updates); err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if w.outbox != nil {
		err = w.step(ctx, domain.StepEnqueueEvent, func(ctx context.Context) error {
			return w.enqueueCreated(ctx, order)
		})
		if err != nil {
			return domain.Order{}, err
		}
	}

	return order, nil
}

func (w *Workflow) findCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := w.customers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("find customer: %w", err)
	}
	return customer, nil
}

// fetchProducts загружает товары одним запросом и проверяет, что найдены все.
func (w *Workflow) fetchProducts(ctx context.Context, req domain.OrderRequest) (map[string]domain.Product, error) {
	products, err := w.catalog.FindAllByID(ctx, req.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	if len(products) == 0 {
		return nil, domain.ErrProductsNotFound
	}

	snapshot := domain.IndexProducts(products)
	for _, item := range req.Items {
		if _, ok := snapshot[item.ProductID]; !ok {
			return nil, &domain.ProductNotFoundError{ProductID: item.ProductID}
		}
	}
	return snapshot, nil
}

// buildItems проверяет остатки и фиксирует текущие цены в позициях.
// Сумма, не помещающаяся в int64, отклоняется до сохранения.
func buildItems(req domain.OrderRequest, snapshot map[string]domain.Product) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, requested := range req.Items {
		product := snapshot[requested.ProductID]
		if requested.Qty > product.Quantity {
			return nil, &domain.InsufficientStockError{
				ProductID: requested.ProductID,
				Requested: requested.Qty,
				Available: product.Quantity,
			}
		}
		items = append(items, domain.OrderItem{
			ProductID:  requested.ProductID,
			Qty:        requested.Qty,
			PriceMinor: product.PriceMinor,
		})
	}
	if _, err := domain.ItemsTotal(items); err != nil {
		return nil, err
	}
	return items, nil
}

// stockUpdates считает новые остатки по позициям, которые вернуло хранилище,
// относительно остатков, прочитанных при проверке.
func stockUpdates(order domain.Order, snapshot map[string]domain.Product) ([]domain.StockUpdate, error) {
	updates := make([]domain.StockUpdate, 0, len(order.Items))
	for _, item := range order.Items {
		product, ok := snapshot[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("persisted item references unknown product %s", item.ProductID)
		}
		updates = append(updates, domain.StockUpdate{
			ProductID:        item.ProductID,
			Quantity:         product.Quantity - item.Qty,
			ExpectedQuantity: product.Quantity,
		})
	}
	return updates, nil
}

func (w *Workflow) enqueueCreated(ctx context.Context, order domain.Order) error {
	payload, err := json.Marshal(domain.NewOrderCreatedEvent(order, w.now()))
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	_, err = w.outbox.Enqueue(ctx, domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     domain.EventTypeOrderCreated,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue order event: %w", err)
	}
	if w.metrics != nil {
		w.metrics.RecordOutboxEvent()
	}
	return nil
}

// step выполняет шаг в отдельном спане и пишет его длительность.
func (w *Workflow) step(ctx context.Context, step domain.WorkflowStep, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := w.tracer.Start(ctx, "ordering."+string(step))
	defer span.End()

	started := w.now()
	err := fn(ctx)
	if w.metrics != nil {
		w.metrics.RecordStepDuration(string(step), w.now().Sub(started))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (w *Workflow) finish(span trace.Span, start time.Time, req domain.OrderRequest, order domain.Order, err error) {
	defer span.End()

	result := resultOf(err)
	if w.metrics != nil {
		w.metrics.RecordInFlightFinished()
		w.metrics.RecordDuration(w.now().Sub(start))
		w.metrics.RecordResult(result)
	}
	span.SetAttributes(attribute.String("order.result", result))

	fields := log.Fields{
		"customer_id": req.CustomerID,
		"items":       len(req.Items),
	}
	switch result {
	case metrics.ResultCreated:
		units := 0
		for _, item := range order.Items {
			units += int(item.Qty)
		}
		if w.metrics != nil {
			w.metrics.RecordUnitsOrdered(units)
		}
		span.SetAttributes(attribute.String("order.id", order.ID))
		fields["order_id"] = order.ID
		fields["amount_minor"] = order.AmountMinor
		w.logger.WithFields(fields).Info("order created")
	case metrics.ResultRejected:
		span.SetStatus(codes.Error, err.Error())
		w.logger.WithError(err).WithFields(fields).Warn("order rejected")
	case metrics.ResultConflict:
		span.SetStatus(codes.Error, err.Error())
		w.logger.WithError(err).WithFields(fields).Warn("stock changed concurrently")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.logger.WithError(err).WithFields(fields).Error("order placement failed")
	}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultCreated
	case domain.IsValidationError(err):
		return metrics.ResultRejected
	case domain.IsStockConflict(err):
		return metrics.ResultConflict
	default:
		return metrics.ResultFailed
	}
}

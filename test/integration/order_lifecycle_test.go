package integration

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
	"github.com/vladislavdragonenkov/ordering/internal/metrics"
	"github.com/vladislavdragonenkov/ordering/internal/service/ordering"
	"github.com/vladislavdragonenkov/ordering/internal/service/outbox"
	"github.com/vladislavdragonenkov/ordering/internal/storage/memory"
)

// OrderLifecycleTestSuite прогоняет оформление заказа от запроса до публикации события.
type OrderLifecycleTestSuite struct {
	suite.Suite
	customers *memory.CustomerDirectory
	catalog   *memory.ProductCatalog
	orders    *memory.OrderStore
	outbox    *memory.OutboxRepository
	workflow  *ordering.Workflow
	logger    *log.Entry
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	suite.logger = baseLogger.WithField("component", "integration-test")

	suite.customers = memory.NewCustomerDirectory(domain.Customer{ID: "C1"})
	suite.catalog = memory.NewProductCatalog(
		domain.Product{ID: "P1", Quantity: 10, PriceMinor: 500},
		domain.Product{ID: "P2", Quantity: 4, PriceMinor: 125},
	)
	suite.orders = memory.NewOrderStore()
	suite.outbox = memory.NewOutboxRepository()

	workflow, err := ordering.NewWorkflow(suite.customers, suite.catalog, suite.orders,
		ordering.WithLogger(suite.logger),
		ordering.WithMetrics(metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry())),
		ordering.WithTxManager(memory.NewTxManager()),
		ordering.WithOutbox(suite.outbox),
	)
	suite.Require().NoError(err)
	suite.workflow = workflow
}

func (suite *OrderLifecycleTestSuite) quantity(id string) int32 {
	p, ok := suite.catalog.Get(id)
	suite.Require().True(ok, "product %s", id)
	return p.Quantity
}

func (suite *OrderLifecycleTestSuite) TestSuccessfulOrder() {
	ctx := context.Background()

	order, err := suite.workflow.CreateOrder(ctx, domain.OrderRequest{
		CustomerID: "C1",
		Items:      []domain.RequestedItem{{ProductID: "P1", Qty: 3}},
	})
	suite.Require().NoError(err)

	suite.NotEmpty(order.ID)
	suite.Equal("C1", order.CustomerID)
	suite.Equal(int64(1500), order.AmountMinor)
	suite.Require().Len(order.Items, 1)
	suite.Equal(int64(500), order.Items[0].PriceMinor)
	suite.Equal(order.ID, order.Items[0].OrderID)
	suite.Equal(int32(7), suite.quantity("P1"))

	stored, err := suite.orders.Get(ctx, order.ID)
	suite.Require().NoError(err)
	suite.Equal(order.AmountMinor, stored.AmountMinor)

	history, err := suite.orders.ListByCustomer(ctx, "C1", 0)
	suite.Require().NoError(err)
	suite.Len(history, 1)

	pending := suite.outbox.AllPending()
	suite.Require().Len(pending, 1)
	suite.Equal(order.ID, pending[0].AggregateID)
	suite.Equal(domain.EventTypeOrderCreated, pending[0].EventType)
}

func (suite *OrderLifecycleTestSuite) TestPriceChangeDoesNotAffectPlacedOrder() {
	ctx := context.Background()

	order, err := suite.workflow.CreateOrder(ctx, domain.OrderRequest{
		CustomerID: "C1",
		Items: []domain.RequestedItem{
			{ProductID: "P1", Qty: 3},
			{ProductID: "P2", Qty: 1},
		},
	})
	suite.Require().NoError(err)
	suite.Equal(int64(1625), order.AmountMinor)

	suite.catalog.Upsert(domain.Product{ID: "P1", Quantity: 7, PriceMinor: 900})

	stored, err := suite.orders.Get(ctx, order.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(1625), stored.AmountMinor)
	suite.Equal(int64(500), stored.Items[0].PriceMinor)
}

func (suite *OrderLifecycleTestSuite) TestRejectedRequestsLeaveStateUntouched() {
	ctx := context.Background()

	cases := []struct {
		name  string
		req   domain.OrderRequest
		check func(err error)
	}{
		{
			name: "insufficient stock",
			req:  domain.OrderRequest{CustomerID: "C1", Items: []domain.RequestedItem{{ProductID: "P1", Qty: 15}}},
			check: func(err error) {
				var stockErr *domain.InsufficientStockError
				suite.Require().ErrorAs(err, &stockErr)
				suite.Equal(int32(15), stockErr.Requested)
				suite.Equal(int32(10), stockErr.Available)
			},
		},
		{
			name: "unknown product",
			req:  domain.OrderRequest{CustomerID: "C1", Items: []domain.RequestedItem{{ProductID: "P9", Qty: 1}}},
			check: func(err error) {
				suite.True(errors.Is(err, domain.ErrProductsNotFound) || errors.Is(err, domain.ErrProductNotFound))
			},
		},
		{
			name: "unknown customer",
			req:  domain.OrderRequest{CustomerID: "C9", Items: []domain.RequestedItem{{ProductID: "P1", Qty: 1}}},
			check: func(err error) {
				suite.ErrorIs(err, domain.ErrCustomerNotFound)
			},
		},
		{
			name: "empty items",
			req:  domain.OrderRequest{CustomerID: "C1"},
			check: func(err error) {
				suite.ErrorIs(err, domain.ErrProductsNotFound)
			},
		},
	}

	for _, tc := range cases {
		suite.Run(tc.name, func() {
			_, err := suite.workflow.CreateOrder(ctx, tc.req)
			suite.Require().Error(err)
			suite.True(domain.IsValidationError(err))
			tc.check(err)

			suite.Equal(int32(10), suite.quantity("P1"))
			suite.Zero(suite.orders.Count())
			suite.Empty(suite.outbox.AllPending())
		})
	}
}

func (suite *OrderLifecycleTestSuite) TestConcurrentOrdersNeverOversell() {
	ctx := context.Background()

	const buyers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := suite.workflow.CreateOrder(ctx, domain.OrderRequest{
				CustomerID: "C1",
				Items:      []domain.RequestedItem{{ProductID: "P1", Qty: 3}},
			})
			if err != nil {
				if !domain.IsStockConflict(err) && !errors.Is(err, domain.ErrInsufficientStock) {
					suite.Failf("unexpected error", "%v", err)
				}
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	wg.Wait()

	suite.GreaterOrEqual(succeeded, 1)
	suite.LessOrEqual(succeeded, 3)
	suite.Equal(int32(10-3*succeeded), suite.quantity("P1"))
	suite.Equal(succeeded, suite.orders.Count())
	suite.Len(suite.outbox.AllPending(), succeeded)
}

func (suite *OrderLifecycleTestSuite) TestOutboxRelayPublishesCreatedOrders() {
	ctx := context.Background()

	order, err := suite.workflow.CreateOrder(ctx, domain.OrderRequest{
		CustomerID: "C1",
		Items:      []domain.RequestedItem{{ProductID: "P2", Qty: 2}},
	})
	suite.Require().NoError(err)

	publisher := &recordingPublisher{}
	worker := outbox.NewWorker(suite.outbox, publisher,
		outbox.WithLogger(suite.logger),
		outbox.WithMetrics(outbox.NewMetrics(prometheus.NewRegistry())),
	)

	result := worker.ProcessOnce(ctx)
	suite.Equal(outbox.Result{Sent: 1}, result)
	suite.Empty(suite.outbox.AllPending())

	events := publisher.events()
	suite.Require().Len(events, 1)

	var event domain.OrderEvent
	suite.Require().NoError(json.Unmarshal(events[0].Payload, &event))
	suite.Equal(domain.EventTypeOrderCreated, event.EventType)
	suite.Equal(order.ID, event.OrderID)
	suite.Equal(int64(250), event.AmountMinor)
	suite.Require().Len(event.Items, 1)
	suite.Equal("P2", event.Items[0].ProductID)

	suite.Equal(outbox.Result{}, worker.ProcessOnce(ctx))
}

func TestOrderLifecycleSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration suite in short mode")
	}
	suite.Run(t, new(OrderLifecycleTestSuite))
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []domain.OutboxMessage
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return nil
}

func (p *recordingPublisher) events() []domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OutboxMessage(nil), p.published...)
}

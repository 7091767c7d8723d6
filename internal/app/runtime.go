package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordering/internal/cache"
	"github.com/vladislavdragonenkov/ordering/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ordering/internal/health"
	"github.com/vladislavdragonenkov/ordering/internal/metrics"
	"github.com/vladislavdragonenkov/ordering/internal/service/ordering"
	"github.com/vladislavdragonenkov/ordering/internal/storage/memory"
	"github.com/vladislavdragonenkov/ordering/internal/storage/postgres"
)

// catalogSeeder заполняет справочники клиентов и товаров.
type catalogSeeder interface {
	addCustomer(ctx context.Context, c domain.Customer) error
	upsertProduct(ctx context.Context, p domain.Product) error
}

// Runtime собирает хранилища и Workflow по конфигурации.
type Runtime struct {
	cfg    Config
	logger *log.Entry

	customers domain.CustomerDirectory
	catalog   domain.ProductCatalog
	orders    domain.OrderStore
	outbox    domain.OutboxRepository
	tx        domain.TxManager
	seeder    catalogSeeder

	pg    *postgres.Store
	redis *cache.RedisCache

	workflow *ordering.Workflow
}

// RuntimeOption настраивает Runtime.
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	registerer prometheus.Registerer
}

// WithRegisterer задаёт registry для метрик Workflow.
func WithRegisterer(reg prometheus.Registerer) RuntimeOption {
	return func(o *runtimeOptions) {
		o.registerer = reg
	}
}

// NewRuntime открывает хранилища и собирает Workflow.
// При ошибке уже открытые ресурсы закрываются.
func NewRuntime(ctx context.Context, cfg Config, logger *log.Entry, opts ...RuntimeOption) (*Runtime, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := runtimeOptions{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	rt := &Runtime{cfg: cfg, logger: logger}
	if err := rt.initStorage(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.initCache(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	workflow, err := ordering.NewWorkflow(rt.customers, rt.catalog, rt.orders,
		ordering.WithLogger(logger.WithField("component", "ordering")),
		ordering.WithMetrics(metrics.NewOrderMetricsWithRegisterer(o.registerer)),
		ordering.WithTxManager(rt.tx),
		ordering.WithOutbox(rt.outbox),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.workflow = workflow
	return rt, nil
}

func (rt *Runtime) initStorage(ctx context.Context) error {
	switch rt.cfg.StorageDriver {
	case StorageDriverMemory:
		customers := memory.NewCustomerDirectory()
		catalog := memory.NewProductCatalog()
		orders := memory.NewOrderStore()
		outbox := memory.NewOutboxRepository()

		rt.customers = customers
		rt.catalog = catalog
		rt.orders = orders
		rt.outbox = outbox
		rt.tx = memory.NewTxManager()
		rt.seeder = memorySeeder{customers: customers, catalog: catalog}
		rt.logger.Info("using in-memory storage")
		return nil

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, rt.cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		rt.pg = store
		if rt.cfg.PostgresAutoMigrate {
			applied, err := store.MigrateUp(ctx, 0)
			if err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
			for _, m := range applied {
				rt.logger.WithField("migration", m.String()).Info("migration applied")
			}
		}

		customers := postgres.NewCustomerDirectory(store)
		catalog := postgres.NewProductCatalog(store)
		rt.customers = customers
		rt.catalog = catalog
		rt.orders = postgres.NewOrderStore(store)
		rt.outbox = postgres.NewOutboxRepository(store)
		rt.tx = postgres.NewTxManager(store)
		rt.seeder = postgresSeeder{customers: customers, catalog: catalog}
		rt.logger.WithField("auto_migrate", rt.cfg.PostgresAutoMigrate).Info("using postgres storage")
		return nil

	default:
		return fmt.Errorf("unsupported storage driver %q", rt.cfg.StorageDriver)
	}
}

func (rt *Runtime) initCache(ctx context.Context) error {
	if rt.cfg.RedisAddr == "" {
		return nil
	}
	redisCache, err := cache.NewRedisCache(ctx, rt.cfg.RedisAddr, "ordering")
	if err != nil {
		return err
	}
	rt.redis = redisCache
	rt.customers = cache.NewCustomerDirectory(rt.customers, redisCache, rt.cfg.CustomerCacheTTL,
		rt.logger.WithField("component", "customer-cache"))
	rt.logger.WithFields(log.Fields{
		"addr": rt.cfg.RedisAddr,
		"ttl":  rt.cfg.CustomerCacheTTL,
	}).Info("customer cache enabled")
	return nil
}

// Workflow возвращает собранный OrderCreationWorkflow.
func (rt *Runtime) Workflow() *ordering.Workflow { return rt.workflow }

// Orders возвращает хранилище заказов.
func (rt *Runtime) Orders() domain.OrderStore { return rt.orders }

// Catalog возвращает каталог товаров.
func (rt *Runtime) Catalog() domain.ProductCatalog { return rt.catalog }

// Outbox возвращает outbox-репозиторий.
func (rt *Runtime) Outbox() domain.OutboxRepository { return rt.outbox }

// Seed загружает клиентов и товары в справочники.
func (rt *Runtime) Seed(ctx context.Context, seed Seed) error {
	if err := seed.Validate(); err != nil {
		return err
	}
	for _, id := range seed.Customers {
		if err := rt.seeder.addCustomer(ctx, domain.Customer{ID: id}); err != nil {
			return fmt.Errorf("seed customer %s: %w", id, err)
		}
	}
	for _, p := range seed.Products {
		if err := rt.seeder.upsertProduct(ctx, p.toDomain()); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	rt.logger.WithFields(log.Fields{
		"customers": len(seed.Customers),
		"products":  len(seed.Products),
	}).Info("catalog seeded")
	return nil
}

// RegisterHealthCheckers добавляет проверки хранилищ в handler.
func (rt *Runtime) RegisterHealthCheckers(h *healthcheck.Handler) {
	if rt.pg != nil {
		h.RegisterChecker("postgres", healthcheck.NewChecker("postgres", rt.pg.Ping))
	}
	if rt.redis != nil {
		h.RegisterChecker("redis", healthcheck.NewOptionalChecker("redis", rt.redis.Ping))
	}
	h.RegisterChecker("outbox", healthcheck.NewOptionalChecker("outbox", func(ctx context.Context) error {
		_, err := rt.outbox.Stats(ctx)
		return err
	}))
}

// Close освобождает подключения.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		rt.redis = nil
	}
	if rt.pg != nil {
		if err := rt.pg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close postgres: %w", err))
		}
		rt.pg = nil
	}
	return errors.Join(errs...)
}

type memorySeeder struct {
	customers *memory.CustomerDirectory
	catalog   *memory.ProductCatalog
}

func (s memorySeeder) addCustomer(_ context.Context, c domain.Customer) error {
	s.customers.Add(c)
	return nil
}

func (s memorySeeder) upsertProduct(_ context.Context, p domain.Product) error {
	s.catalog.Upsert(p)
	return nil
}

type postgresSeeder struct {
	customers *postgres.CustomerDirectory
	catalog   *postgres.ProductCatalog
}

func (s postgresSeeder) addCustomer(ctx context.Context, c domain.Customer) error {
	return s.customers.Upsert(ctx, c)
}

func (s postgresSeeder) upsertProduct(ctx context.Context, p domain.Product) error {
	return s.catalog.Upsert(ctx, p)
}

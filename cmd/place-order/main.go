// Command place-order оформляет один заказ через OrderCreationWorkflow.
//
//	place-order -seed catalog.json -customer C1 -item P1:3 -item P2:1
//
// Хранилище выбирается переменными окружения ORDERING_*; созданный заказ
// печатается в stdout как JSON. Код выхода 2 означает, что запрос отклонён
// проверками, 1 сообщает о прочих ошибках.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordering/internal/app"
	"github.com/vladislavdragonenkov/ordering/internal/domain"
	"github.com/vladislavdragonenkov/ordering/internal/telemetry"
	"github.com/vladislavdragonenkov/ordering/internal/version"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitRejected = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// itemsFlag собирает повторяющиеся -item id:qty.
type itemsFlag []domain.RequestedItem

func (f *itemsFlag) String() string {
	parts := make([]string, 0, len(*f))
	for _, item := range *f {
		parts = append(parts, fmt.Sprintf("%s:%d", item.ProductID, item.Qty))
	}
	return strings.Join(parts, ",")
}

func (f *itemsFlag) Set(value string) error {
	id, qtyRaw, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("item %q: expected product:qty", value)
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(qtyRaw), 10, 32)
	if err != nil {
		return fmt.Errorf("item %q: invalid quantity: %w", value, err)
	}
	*f = append(*f, domain.RequestedItem{ProductID: strings.TrimSpace(id), Qty: int32(qty)})
	return nil
}

type options struct {
	customer string
	items    itemsFlag
	seed     string
	timeout  time.Duration
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("place-order", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.customer, "customer", "", "customer id")
	fs.Var(&opts.items, "item", "requested item as product:qty (repeatable)")
	fs.StringVar(&opts.seed, "seed", "", "JSON file with customers and products to load before ordering")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.timeout <= 0 {
		return opts, errors.New("timeout must be positive")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, lookup app.LookupFunc, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			_, _ = fmt.Fprintln(stderr, "error:", err)
		}
		return exitRejected
	}

	cfg, warnings := app.ConfigFromEnv(lookup)
	logger := newLogger(cfg.LogLevel, stderr)
	for _, w := range warnings {
		logger.Warn(w)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	shutdownTracer, err := telemetry.SetupTracer(ctx, telemetry.Config{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceVersion: version.GetVersion(),
	}, logger.WithField("component", "telemetry"))
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	defer func() {
		_ = shutdownTracer(context.WithoutCancel(ctx))
	}()

	// Метрики одноразового процесса никто не соберёт, поэтому реестр локальный.
	rt, err := app.NewRuntime(ctx, cfg, logger.WithField("component", "app"),
		app.WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	defer func() {
		_ = rt.Close()
	}()

	if opts.seed != "" {
		seed, err := app.LoadSeed(opts.seed)
		if err == nil {
			err = rt.Seed(ctx, seed)
		}
		if err != nil {
			_, _ = fmt.Fprintln(stderr, "error:", err)
			return exitFailure
		}
	}

	order, err := rt.Workflow().CreateOrder(ctx, domain.OrderRequest{
		CustomerID: opts.customer,
		Items:      opts.items,
	})
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		if domain.IsValidationError(err) {
			return exitRejected
		}
		return exitFailure
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newOrderView(order)); err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	return exitOK
}

func newLogger(level string, out io.Writer) *log.Entry {
	logger := log.New()
	logger.SetOutput(out)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return log.NewEntry(logger)
}

type orderItemView struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

type orderView struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	AmountMinor int64           `json:"amount_minor"`
	Items       []orderItemView `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newOrderView(order domain.Order) orderView {
	items := make([]orderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemView{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	return orderView{
		ID:          order.ID,
		CustomerID:  order.CustomerID,
		AmountMinor: order.AmountMinor,
		Items:       items,
		CreatedAt:   order.CreatedAt.UTC(),
	}
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

// DefaultCustomerTTL — время жизни записи о клиенте по умолчанию.
const DefaultCustomerTTL = 5 * time.Minute

// CustomerDirectory — read-through кэш поверх domain.CustomerDirectory.
// Кэшируются только найденные клиенты; ошибки кэша не прерывают поиск.
type CustomerDirectory struct {
	next   domain.CustomerDirectory
	cache  Cache
	ttl    time.Duration
	logger *log.Entry
}

// NewCustomerDirectory оборачивает next кэшем.
func NewCustomerDirectory(next domain.CustomerDirectory, cache Cache, ttl time.Duration, logger *log.Entry) *CustomerDirectory {
	if ttl <= 0 {
		ttl = DefaultCustomerTTL
	}
	if logger == nil {
		logger = log.WithField("component", "customer-cache")
	}
	return &CustomerDirectory{next: next, cache: cache, ttl: ttl, logger: logger}
}

type cachedCustomer struct {
	ID string `json:"id"`
}

func customerKey(id string) string {
	return "customer:" + id
}

func (d *CustomerDirectory) FindByID(ctx context.Context, id string) (domain.Customer, error) {
	key := customerKey(id)

	raw, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cached cachedCustomer
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil && cached.ID == id {
			return domain.Customer{ID: cached.ID}, nil
		}
		d.logger.WithField("customer_id", id).Warn("dropping malformed cache entry")
		_ = d.cache.Delete(ctx, key)
	case !errors.Is(err, ErrMiss):
		d.logger.WithError(err).WithField("customer_id", id).Warn("customer cache unavailable")
	}

	customer, err := d.next.FindByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	payload, err := json.Marshal(cachedCustomer{ID: customer.ID})
	if err == nil {
		err = d.cache.Set(ctx, key, payload, d.ttl)
	}
	if err != nil {
		d.logger.WithError(err).WithField("customer_id", id).Warn("failed to cache customer")
	}
	return customer, nil
}

// Invalidate удаляет клиента из кэша.
func (d *CustomerDirectory) Invalidate(ctx context.Context, id string) error {
	return d.cache.Delete(ctx, customerKey(id))
}

var _ domain.CustomerDirectory = (*CustomerDirectory)(nil)

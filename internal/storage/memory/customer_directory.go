package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

// CustomerDirectory хранит справочник клиентов в памяти.
type CustomerDirectory struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
}

// NewCustomerDirectory создаёт справочник с начальным набором клиентов.
func NewCustomerDirectory(customers ...domain.Customer) *CustomerDirectory {
	d := &CustomerDirectory{customers: make(map[string]domain.Customer, len(customers))}
	for _, c := range customers {
		d.customers[c.ID] = c
	}
	return d
}

// Add добавляет или заменяет клиента.
func (d *CustomerDirectory) Add(customer domain.Customer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.customers[customer.ID] = customer
}

// FindByID возвращает клиента или ErrCustomerNotFound.
func (d *CustomerDirectory) FindByID(_ context.Context, id string) (domain.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	customer, ok := d.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

var _ domain.CustomerDirectory = (*CustomerDirectory)(nil)

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

// CustomerDirectory читает клиентов из таблицы customers.
type CustomerDirectory struct {
	store *Store
}

// NewCustomerDirectory создаёт справочник клиентов.
func NewCustomerDirectory(store *Store) *CustomerDirectory {
	return &CustomerDirectory{store: store}
}

func (d *CustomerDirectory) FindByID(ctx context.Context, id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var customer domain.Customer
	err := d.store.executor(ctx).QueryRow(ctx, `SELECT id FROM customers WHERE id = $1`, id).Scan(&customer.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return customer, nil
}

// Upsert добавляет клиента, если его ещё нет.
func (d *CustomerDirectory) Upsert(ctx context.Context, customer domain.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := d.store.executor(ctx).Exec(ctx, `
		INSERT INTO customers (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, customer.ID); err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

var _ domain.CustomerDirectory = (*CustomerDirectory)(nil)

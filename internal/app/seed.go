package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

// Seed — начальное наполнение справочников.
//
//	{"customers": ["C1"], "products": [{"id": "P1", "quantity": 10, "price_minor": 500}]}
type Seed struct {
	Customers []string      `json:"customers"`
	Products  []SeedProduct `json:"products"`
}

type SeedProduct struct {
	ID         string `json:"id"`
	Quantity   int32  `json:"quantity"`
	PriceMinor int64  `json:"price_minor"`
}

func (p SeedProduct) toDomain() domain.Product {
	return domain.Product{ID: p.ID, Quantity: p.Quantity, PriceMinor: p.PriceMinor}
}

// LoadSeed читает Seed из JSON-файла.
func LoadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return seed, seed.Validate()
}

// Validate проверяет инварианты каталога: неотрицательные остатки и цены.
func (s Seed) Validate() error {
	var errs []error
	for i, id := range s.Customers {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Errorf("customers[%d]: empty id", i))
		}
	}
	for i, p := range s.Products {
		switch {
		case strings.TrimSpace(p.ID) == "":
			errs = append(errs, fmt.Errorf("products[%d]: empty id", i))
		case p.Quantity < 0:
			errs = append(errs, fmt.Errorf("products[%d] %s: negative quantity", i, p.ID))
		case p.PriceMinor < 0:
			errs = append(errs, fmt.Errorf("products[%d] %s: negative price", i, p.ID))
		}
	}
	return errors.Join(errs...)
}

package domain_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:          "order-1",
		CustomerID:  "customer-1",
		AmountMinor: 1500,
		Items: []domain.OrderItem{
			{
				ID:         "item-1",
				OrderID:    "order-1",
				ProductID:  "P1",
				Qty:        3,
				PriceMinor: 500,
				CreatedAt:  now,
			},
		},
		CreatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no customer",
			mut: func(o *domain.Order) {
				o.CustomerID = ""
			},
		},
		{
			name: "negative amount",
			mut: func(o *domain.Order) {
				o.AmountMinor = -1
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].PriceMinor = -5
			},
		},
		{
			name: "amount mismatch",
			mut: func(o *domain.Order) {
				o.AmountMinor = 999
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  domain.OrderRequest
		want error
	}{
		{
			name: "valid",
			req: domain.OrderRequest{
				CustomerID: "C1",
				Items:      []domain.RequestedItem{{ProductID: "P1", Qty: 3}, {ProductID: "P2", Qty: 1}},
			},
		},
		{
			name: "no items is left to the catalog check",
			req:  domain.OrderRequest{CustomerID: "C1"},
		},
		{
			name: "missing customer",
			req:  domain.OrderRequest{Items: []domain.RequestedItem{{ProductID: "P1", Qty: 1}}},
			want: domain.ErrCustomerRequired,
		},
		{
			name: "missing product id",
			req:  domain.OrderRequest{CustomerID: "C1", Items: []domain.RequestedItem{{Qty: 1}}},
			want: domain.ErrProductIDRequired,
		},
		{
			name: "zero qty",
			req:  domain.OrderRequest{CustomerID: "C1", Items: []domain.RequestedItem{{ProductID: "P1"}}},
			want: domain.ErrItemQtyInvalid,
		},
		{
			name: "negative qty",
			req:  domain.OrderRequest{CustomerID: "C1", Items: []domain.RequestedItem{{ProductID: "P1", Qty: -2}}},
			want: domain.ErrItemQtyInvalid,
		},
		{
			name: "duplicate product",
			req: domain.OrderRequest{
				CustomerID: "C1",
				Items:      []domain.RequestedItem{{ProductID: "P1", Qty: 1}, {ProductID: "P1", Qty: 2}},
			},
			want: domain.ErrDuplicateProduct,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestOrderRequestProductIDsKeepsOrder(t *testing.T) {
	req := domain.OrderRequest{
		CustomerID: "C1",
		Items:      []domain.RequestedItem{{ProductID: "P3", Qty: 1}, {ProductID: "P1", Qty: 1}, {ProductID: "P2", Qty: 1}},
	}

	ids := req.ProductIDs()
	want := []string{"P3", "P1", "P2"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestNewOrderAmountMinor(t *testing.T) {
	n := domain.NewOrder{
		Customer: domain.Customer{ID: "C1"},
		Items: []domain.OrderItem{
			{ProductID: "P1", Qty: 3, PriceMinor: 500},
			{ProductID: "P2", Qty: 2, PriceMinor: 125},
		},
	}
	if got := n.AmountMinor(); got != 1750 {
		t.Fatalf("expected 1750, got %d", got)
	}
}

func TestItemsTotalOverflow(t *testing.T) {
	cases := []struct {
		name  string
		items []domain.OrderItem
	}{
		{
			name:  "line product",
			items: []domain.OrderItem{{ProductID: "P1", Qty: 3, PriceMinor: math.MaxInt64 / 2}},
		},
		{
			name: "running total",
			items: []domain.OrderItem{
				{ProductID: "P1", Qty: 1, PriceMinor: math.MaxInt64 - 10},
				{ProductID: "P2", Qty: 1, PriceMinor: 11},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.ItemsTotal(tc.items)
			if !errors.Is(err, domain.ErrAmountOverflow) {
				t.Fatalf("expected ErrAmountOverflow, got %v", err)
			}
			if !domain.IsValidationError(err) {
				t.Fatalf("overflow must be a validation error: %v", err)
			}
		})
	}

	total, err := domain.ItemsTotal([]domain.OrderItem{
		{ProductID: "P1", Qty: 1, PriceMinor: math.MaxInt64 - 10},
		{ProductID: "P2", Qty: 2, PriceMinor: 5},
	})
	if err != nil || total != math.MaxInt64 {
		t.Fatalf("expected exact MaxInt64, got %d, %v", total, err)
	}
}

func TestValidateInvariantsReportsOverflow(t *testing.T) {
	order := makeOrder()
	order.Items[0].Qty = 2
	order.Items[0].PriceMinor = math.MaxInt64
	errs := order.ValidateInvariants()
	found := false
	for _, err := range errs {
		if errors.Is(err, domain.ErrAmountOverflow) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ErrAmountOverflow in %v", errs)
	}
}

func TestIndexProducts(t *testing.T) {
	index := domain.IndexProducts([]domain.Product{
		{ID: "P1", Quantity: 10, PriceMinor: 500},
		{ID: "P2", Quantity: 0, PriceMinor: 100},
	})
	if len(index) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(index))
	}
	if index["P1"].Quantity != 10 {
		t.Fatalf("unexpected P1 quantity: %d", index["P1"].Quantity)
	}
}

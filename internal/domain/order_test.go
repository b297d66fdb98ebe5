package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

// helper для создания базового заказа с двумя билетами.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:      "order-1",
		BuyerID: "buyer-1",
		Status:  domain.OrderStatusPending,
		Items: []domain.OrderItem{
			{ID: "oi-1", InventoryItemID: "item-1", PriceSnapshot: decimal.RequireFromString("50.25"), CreatedAt: now},
			{ID: "oi-2", InventoryItemID: "item-2", PriceSnapshot: decimal.RequireFromString("49.75"), CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
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
		{name: "no buyer", mut: func(o *domain.Order) { o.BuyerID = "" }},
		{name: "no items", mut: func(o *domain.Order) { o.Items = nil }},
		{name: "empty item id", mut: func(o *domain.Order) { o.Items[0].InventoryItemID = "" }},
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

func TestOrderTotalAndItemIDs(t *testing.T) {
	order := makeOrder()
	if !order.Total().Equal(decimal.RequireFromString("100")) {
		t.Fatalf("unexpected total: %s", order.Total())
	}
	ids := order.ItemIDs()
	if len(ids) != 2 || ids[0] != "item-1" || ids[1] != "item-2" {
		t.Fatalf("unexpected item ids: %v", ids)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if domain.OrderStatusPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	if !domain.OrderStatusPaid.Terminal() || !domain.OrderStatusCancelled.Terminal() {
		t.Fatal("paid and cancelled must be terminal")
	}
}

func TestPaymentValidate(t *testing.T) {
	ok := domain.Payment{OrderID: "order-1", Amount: decimal.RequireFromString("10")}
	if errs := ok.Validate(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	bad := domain.Payment{Amount: decimal.RequireFromString("-1")}
	if errs := bad.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}

func TestRiskFlagTypeValid(t *testing.T) {
	if !domain.RiskFlagHighPrice.Valid() || !domain.RiskFlagBlacklistedSeller.Valid() {
		t.Fatal("known flag types must be valid")
	}
	if domain.RiskFlagType("bogus").Valid() {
		t.Fatal("unknown flag type must be invalid")
	}
}

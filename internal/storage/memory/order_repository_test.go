package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/resale/internal/domain"
	"github.com/vladislavdragonenkov/resale/internal/storage/memory"
)

func seedOrder(t *testing.T, repos domain.Repositories, id string, createdAt time.Time) {
	t.Helper()
	order := domain.Order{
		ID:        id,
		BuyerID:   "buyer-1",
		Status:    domain.OrderStatusPending,
		Items:     []domain.OrderItem{{ID: id + "-item", InventoryItemID: "item-1", PriceSnapshot: decimal.NewFromInt(50), CreatedAt: createdAt}},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	payment := domain.Payment{
		ID:        id + "-payment",
		OrderID:   id,
		Status:    domain.PaymentStatusPending,
		Amount:    decimal.NewFromInt(50),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	err := repos.Tx.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repos.Orders.Create(ctx, order); err != nil {
			return err
		}
		return repos.Payments.Create(ctx, payment)
	})
	if err != nil {
		t.Fatalf("seed order %s: %v", id, err)
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	repos := memory.NewStore().Repositories()
	seedOrder(t, repos, "order-1", time.Now().UTC())

	stored, err := repos.Orders.Get(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != "order-1" || len(stored.Items) != 1 {
		t.Fatalf("unexpected order %+v", stored)
	}

	payment, err := repos.Payments.GetByOrder(context.Background(), "order-1")
	if err != nil || payment.ID != "order-1-payment" {
		t.Fatalf("unexpected payment %+v %v", payment, err)
	}

	if _, err := repos.Orders.Get(context.Background(), "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPaymentRepository_RejectsSecondPayment(t *testing.T) {
	repos := memory.NewStore().Repositories()
	seedOrder(t, repos, "order-1", time.Now().UTC())

	err := repos.Payments.Create(context.Background(), domain.Payment{ID: "other", OrderID: "order-1"})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if err := repos.Payments.Create(context.Background(), domain.Payment{ID: "p", OrderID: "missing"}); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderRepository_ListExpiredPendingAndClaim(t *testing.T) {
	repos := memory.NewStore().Repositories()
	ctx := context.Background()
	now := time.Now().UTC()

	seedOrder(t, repos, "order-old", now.Add(-20*time.Minute))
	seedOrder(t, repos, "order-fresh", now)
	seedOrder(t, repos, "order-paid", now.Add(-30*time.Minute))
	seedOrder(t, repos, "order-edge", now.Add(-15*time.Minute))

	paid, _ := repos.Payments.GetByOrder(ctx, "order-paid")
	if err := repos.Payments.UpdateStatus(ctx, paid.ID, domain.PaymentStatusCompleted, now); err != nil {
		t.Fatalf("update payment: %v", err)
	}

	cutoff := now.Add(-15 * time.Minute)
	refs, err := repos.Orders.ListExpiredPending(ctx, cutoff, domain.OrderRef{}, 10)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != "order-old" {
		t.Fatalf("unexpected expired refs %v", refs)
	}

	err = repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		order, ok, err := repos.Orders.ClaimExpired(txCtx, "order-old", cutoff)
		if err != nil {
			return err
		}
		if !ok || order.ID != "order-old" {
			t.Fatalf("expected claim, got %v %+v", ok, order)
		}
		_, ok, err = repos.Orders.ClaimExpired(txCtx, "order-fresh", cutoff)
		if err != nil {
			return err
		}
		if ok {
			t.Fatal("fresh order must not be claimed")
		}
		_, ok, err = repos.Orders.ClaimExpired(txCtx, "order-edge", cutoff)
		if err != nil {
			return err
		}
		if ok {
			t.Fatal("order created exactly at the cutoff must not be claimed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("claim tx: %v", err)
	}
}

func TestOrderRepository_ListExpiredPendingPagesByCursor(t *testing.T) {
	repos := memory.NewStore().Repositories()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	seedOrder(t, repos, "order-b", base)
	seedOrder(t, repos, "order-a", base)
	seedOrder(t, repos, "order-c", base.Add(time.Minute))

	cutoff := base.Add(time.Hour)
	first, err := repos.Orders.ListExpiredPending(ctx, cutoff, domain.OrderRef{}, 2)
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first) != 2 || first[0].ID != "order-a" || first[1].ID != "order-b" {
		t.Fatalf("unexpected first page %v", first)
	}

	second, err := repos.Orders.ListExpiredPending(ctx, cutoff, first[1], 2)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second) != 1 || second[0].ID != "order-c" {
		t.Fatalf("unexpected second page %v", second)
	}
}

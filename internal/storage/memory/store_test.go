package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/resale/internal/domain"
	"github.com/vladislavdragonenkov/resale/internal/storage/memory"
)

func newListing(id string, status domain.ListingStatus, itemIDs ...string) domain.Listing {
	now := time.Now().UTC()
	items := make([]domain.InventoryItem, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		items = append(items, domain.InventoryItem{
			ID:          itemID,
			ListingID:   id,
			TicketID:    "ticket-" + itemID,
			AskingPrice: decimal.RequireFromString("100.00"),
			FaceValue:   decimal.RequireFromString("100.00"),
			Status:      status.ItemStatusFor(),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return domain.Listing{
		ID:        id,
		SellerID:  "seller-1",
		Status:    status,
		ExpiresAt: now.Add(24 * time.Hour),
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	store := memory.NewStore()
	repos := store.Repositories()
	ctx := context.Background()

	if err := repos.Listings.Create(ctx, newListing("listing-1", domain.ListingStatusActive, "item-1")); err != nil {
		t.Fatalf("create listing: %v", err)
	}

	boom := errors.New("boom")
	err := repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		if err := repos.Inventory.SetStatus(txCtx, []string{"item-1"}, domain.ItemStatusSold, time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	listing, err := repos.Listings.Get(ctx, "listing-1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing.Items[0].Status != domain.ItemStatusActive {
		t.Fatalf("expected rollback to keep item active, got %s", listing.Items[0].Status)
	}
}

func TestStore_NestedTxJoinsOuter(t *testing.T) {
	store := memory.NewStore()
	repos := store.Repositories()
	ctx := context.Background()

	if err := repos.Listings.Create(ctx, newListing("listing-1", domain.ListingStatusActive, "item-1")); err != nil {
		t.Fatalf("create listing: %v", err)
	}

	err := repos.Tx.WithinTx(ctx, func(outer context.Context) error {
		return repos.Tx.WithinTx(outer, func(inner context.Context) error {
			return repos.Inventory.SetStatus(inner, []string{"item-1"}, domain.ItemStatusSold, time.Now())
		})
	})
	if err != nil {
		t.Fatalf("nested tx: %v", err)
	}

	listing, _ := repos.Listings.Get(ctx, "listing-1")
	if listing.Items[0].Status != domain.ItemStatusSold {
		t.Fatalf("expected sold, got %s", listing.Items[0].Status)
	}
}

func TestInventoryRepository_RequiresTx(t *testing.T) {
	repos := memory.NewStore().Repositories()

	if _, err := repos.Inventory.LockItems(context.Background(), []string{"item-1"}); !errors.Is(err, domain.ErrTxRequired) {
		t.Fatalf("expected ErrTxRequired, got %v", err)
	}
	if err := repos.Inventory.SetStatus(context.Background(), []string{"item-1"}, domain.ItemStatusSold, time.Now()); !errors.Is(err, domain.ErrTxRequired) {
		t.Fatalf("expected ErrTxRequired, got %v", err)
	}
}

func TestInventoryRepository_LockItemsSortedWithListingStatus(t *testing.T) {
	repos := memory.NewStore().Repositories()
	ctx := context.Background()

	if err := repos.Listings.Create(ctx, newListing("listing-1", domain.ListingStatusActive, "item-b", "item-a")); err != nil {
		t.Fatalf("create listing: %v", err)
	}

	err := repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		locked, err := repos.Inventory.LockItems(txCtx, []string{"item-b", "item-a"})
		if err != nil {
			return err
		}
		if len(locked) != 2 || locked[0].Item.ID != "item-a" || locked[1].Item.ID != "item-b" {
			t.Fatalf("expected ascending order, got %+v", locked)
		}
		if locked[0].ListingStatus != domain.ListingStatusActive {
			t.Fatalf("expected listing status active, got %s", locked[0].ListingStatus)
		}

		_, err = repos.Inventory.LockItems(txCtx, []string{"item-a", "missing"})
		if !errors.Is(err, domain.ErrItemNotFound) {
			t.Fatalf("expected ErrItemNotFound, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

// Package fixture наполняет хранилище тестовыми листингами и продавцами.
package fixture

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

// Epoch: фиксированный момент, от которого тесты отсчитывают время.
var Epoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// ListingSpec описывает листинг для SeedListing.
type ListingSpec struct {
	ID        string
	SellerID  string
	Status    domain.ListingStatus
	ItemIDs   []string
	Asking    string
	Face      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SeedListing создаёт листинг с билетами в статусе, согласованном со статусом листинга.
func SeedListing(t testing.TB, repos domain.Repositories, spec ListingSpec) domain.Listing {
	t.Helper()

	if spec.SellerID == "" {
		spec.SellerID = "seller-1"
	}
	if spec.Status == "" {
		spec.Status = domain.ListingStatusActive
	}
	if spec.Asking == "" {
		spec.Asking = "100.00"
	}
	if spec.Face == "" {
		spec.Face = "100.00"
	}
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = Epoch
	}
	if spec.ExpiresAt.IsZero() {
		spec.ExpiresAt = spec.CreatedAt.Add(30 * 24 * time.Hour)
	}

	listing := domain.Listing{
		ID:        spec.ID,
		SellerID:  spec.SellerID,
		Status:    spec.Status,
		ExpiresAt: spec.ExpiresAt,
		CreatedAt: spec.CreatedAt,
		UpdatedAt: spec.CreatedAt,
	}
	for i, id := range spec.ItemIDs {
		listing.Items = append(listing.Items, domain.InventoryItem{
			ID:          id,
			ListingID:   spec.ID,
			TicketID:    fmt.Sprintf("%s-ticket-%d", spec.ID, i+1),
			AskingPrice: decimal.RequireFromString(spec.Asking),
			FaceValue:   decimal.RequireFromString(spec.Face),
			Status:      spec.Status.ItemStatusFor(),
			CreatedAt:   spec.CreatedAt,
			UpdatedAt:   spec.CreatedAt,
		})
	}
	if err := repos.Listings.Create(context.Background(), listing); err != nil {
		t.Fatalf("seed listing %s: %v", spec.ID, err)
	}
	return listing
}

// SeedSeller сохраняет профиль продавца.
func SeedSeller(t testing.TB, repos domain.Repositories, sellerID string, tier int, blacklisted bool) {
	t.Helper()
	if err := repos.Sellers.Upsert(context.Background(), domain.SellerProfile{
		SellerID:         sellerID,
		VerificationTier: tier,
		Blacklisted:      blacklisted,
	}); err != nil {
		t.Fatalf("seed seller %s: %v", sellerID, err)
	}
}

// ItemStatus читает статус билета через его листинг.
func ItemStatus(t testing.TB, repos domain.Repositories, listingID, itemID string) domain.ItemStatus {
	t.Helper()
	listing, err := repos.Listings.Get(context.Background(), listingID)
	if err != nil {
		t.Fatalf("get listing %s: %v", listingID, err)
	}
	for _, item := range listing.Items {
		if item.ID == itemID {
			return item.Status
		}
	}
	t.Fatalf("item %s not found in listing %s", itemID, listingID)
	return ""
}

// ListingStatus читает текущий статус листинга.
func ListingStatus(t testing.TB, repos domain.Repositories, listingID string) domain.ListingStatus {
	t.Helper()
	listing, err := repos.Listings.Get(context.Background(), listingID)
	if err != nil {
		t.Fatalf("get listing %s: %v", listingID, err)
	}
	return listing.Status
}

// OutboxEvents возвращает типы pending-событий outbox в порядке записи.
func OutboxEvents(t testing.TB, repos domain.Repositories) []string {
	t.Helper()
	msgs, err := repos.Outbox.PullPending(context.Background(), 1000)
	if err != nil {
		t.Fatalf("pull outbox: %v", err)
	}
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		types = append(types, m.EventType)
	}
	return types
}

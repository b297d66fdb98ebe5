package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

func seedListing(t *testing.T, repos domain.Repositories, id string, status domain.ListingStatus, itemIDs ...string) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	listing := domain.Listing{
		ID:        id,
		SellerID:  "seller-1",
		Status:    status,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, itemID := range itemIDs {
		listing.Items = append(listing.Items, domain.InventoryItem{
			ID:          itemID,
			TicketID:    "ticket-" + itemID,
			AskingPrice: decimal.RequireFromString("120.50"),
			FaceValue:   decimal.RequireFromString("100.00"),
			Status:      status.ItemStatusFor(),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	require.NoError(t, repos.Listings.Create(context.Background(), listing))
}

func TestStore_ListingRoundTrip(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repos := store.Repositories()
	ctx := context.Background()

	seedListing(t, repos, "listing-1", domain.ListingStatusActive, "item-2", "item-1")

	listing, err := repos.Listings.Get(ctx, "listing-1")
	require.NoError(t, err)
	require.Len(t, listing.Items, 2)
	require.Equal(t, "item-1", listing.Items[0].ID)
	require.True(t, listing.Items[0].AskingPrice.Equal(decimal.RequireFromString("120.50")))

	_, err = repos.Listings.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestStore_LockItemsAndRollback(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repos := store.Repositories()
	ctx := context.Background()

	seedListing(t, repos, "listing-1", domain.ListingStatusActive, "item-1", "item-2")

	boom := errors.New("boom")
	err := repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		locked, err := repos.Inventory.LockItems(txCtx, []string{"item-2", "item-1", "item-2"})
		require.NoError(t, err)
		require.Len(t, locked, 2)
		require.Equal(t, domain.ListingStatusActive, locked[0].ListingStatus)

		require.NoError(t, repos.Inventory.SetStatus(txCtx, []string{"item-1", "item-2"}, domain.ItemStatusSold, time.Now()))
		return boom
	})
	require.ErrorIs(t, err, boom)

	listing, err := repos.Listings.Get(ctx, "listing-1")
	require.NoError(t, err)
	for _, item := range listing.Items {
		require.Equal(t, domain.ItemStatusActive, item.Status)
	}

	err = repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		_, err := repos.Inventory.LockItems(txCtx, []string{"item-1", "missing"})
		return err
	})
	require.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestStore_OrderPaymentAndClaimExpired(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repos := store.Repositories()
	ctx := context.Background()

	seedListing(t, repos, "listing-1", domain.ListingStatusActive, "item-1")
	createdAt := time.Now().UTC().Add(-10 * time.Minute).Truncate(time.Microsecond)

	err := repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		if err := repos.Orders.Create(txCtx, domain.Order{
			ID:        "order-1",
			BuyerID:   "buyer-1",
			Status:    domain.OrderStatusPending,
			Items:     []domain.OrderItem{{ID: "oi-1", InventoryItemID: "item-1", PriceSnapshot: decimal.NewFromInt(120), CreatedAt: createdAt}},
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}); err != nil {
			return err
		}
		return repos.Payments.Create(txCtx, domain.Payment{
			ID: "payment-1", OrderID: "order-1", Status: domain.PaymentStatusPending,
			Amount: decimal.NewFromInt(120), CreatedAt: createdAt, UpdatedAt: createdAt,
		})
	})
	require.NoError(t, err)

	refs, err := repos.Orders.ListExpiredPending(ctx, time.Now().Add(-5*time.Minute), domain.OrderRef{}, 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, "order-1", refs[0].ID)
	require.True(t, refs[0].CreatedAt.Equal(createdAt))

	refs, err = repos.Orders.ListExpiredPending(ctx, time.Now().Add(-5*time.Minute), refs[0], 10)
	require.NoError(t, err)
	require.Empty(t, refs, "cursor must step past the last candidate")

	refs, err = repos.Orders.ListExpiredPending(ctx, time.Now().Add(-time.Hour), domain.OrderRef{}, 10)
	require.NoError(t, err)
	require.Empty(t, refs)

	refs, err = repos.Orders.ListExpiredPending(ctx, createdAt, domain.OrderRef{}, 10)
	require.NoError(t, err)
	require.Empty(t, refs, "order aged exactly the deadline is not a candidate")

	err = repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		order, ok, err := repos.Orders.ClaimExpired(txCtx, "order-1", time.Now().Add(-5*time.Minute))
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, order.Items, 1)
		return nil
	})
	require.NoError(t, err)

	settled, err := repos.Listings.ItemsSettled(ctx, "listing-1")
	require.NoError(t, err)
	require.False(t, settled)
}

func TestStore_ClaimExpiredSkipsLockedOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repos := store.Repositories()
	ctx := context.Background()

	seedListing(t, repos, "listing-1", domain.ListingStatusActive, "item-1")
	createdAt := time.Now().UTC().Add(-10 * time.Minute)
	require.NoError(t, repos.Orders.Create(ctx, domain.Order{
		ID: "order-1", BuyerID: "buyer-1", Status: domain.OrderStatusPending,
		CreatedAt: createdAt, UpdatedAt: createdAt,
	}))
	require.NoError(t, repos.Payments.Create(ctx, domain.Payment{
		ID: "payment-1", OrderID: "order-1", Status: domain.PaymentStatusPending,
		Amount: decimal.Zero, CreatedAt: createdAt, UpdatedAt: createdAt,
	}))

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
			if _, err := repos.Orders.GetForUpdate(txCtx, "order-1"); err != nil {
				return err
			}
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	err := repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		_, ok, err := repos.Orders.ClaimExpired(txCtx, "order-1", time.Now())
		require.NoError(t, err)
		require.False(t, ok, "locked order must be skipped")
		return nil
	})
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}

func TestStore_RiskFlagsAreUniquePerType(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repos := store.Repositories()
	ctx := context.Background()

	seedListing(t, repos, "listing-1", domain.ListingStatusPending, "item-1")

	flag := domain.RiskFlag{ID: "flag-1", ListingID: "listing-1", Type: domain.RiskFlagHighPrice, Reason: "r", CreatedAt: time.Now()}
	inserted, err := repos.RiskFlags.Insert(ctx, flag)
	require.NoError(t, err)
	require.True(t, inserted)

	flag.ID = "flag-2"
	inserted, err = repos.RiskFlags.Insert(ctx, flag)
	require.NoError(t, err)
	require.False(t, inserted)

	ids, err := repos.Listings.ListPendingUnflagged(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, ids)

	flags, err := repos.RiskFlags.ListByListing(ctx, "listing-1")
	require.NoError(t, err)
	require.Len(t, flags, 1)
}

func TestStore_OutboxAndTimeline(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repos := store.Repositories()
	ctx := context.Background()

	msg, err := repos.Outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateOrder, AggregateID: "order-1",
		EventType: domain.EventOrderCreated, Payload: []byte(`{}`),
	})
	require.NoError(t, err)

	stats, err := repos.Outbox.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.PendingCount)

	pending, err := repos.Outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, repos.Outbox.MarkSent(ctx, msg.ID))
	require.ErrorIs(t, repos.Outbox.MarkSent(ctx, "missing"), domain.ErrOutboxPublish)

	now := time.Now().UTC()
	require.NoError(t, repos.Timeline.Append(ctx, domain.TimelineEvent{OrderID: "order-1", Type: domain.TimelineOrderPaid, Occurred: now.Add(time.Second)}))
	require.NoError(t, repos.Timeline.Append(ctx, domain.TimelineEvent{OrderID: "order-1", Type: domain.TimelineOrderCreated, Occurred: now}))
	events, err := repos.Timeline.List(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.TimelineOrderCreated, events[0].Type)

	require.NoError(t, repos.Sellers.Upsert(ctx, domain.SellerProfile{SellerID: "seller-1", VerificationTier: 2}))
	profile, err := repos.Sellers.GetProfile(ctx, "seller-1")
	require.NoError(t, err)
	require.Equal(t, 2, profile.VerificationTier)
}

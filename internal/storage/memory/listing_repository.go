package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type listingRepository struct {
	store *Store
}

func (r *listingRepository) Create(ctx context.Context, listing domain.Listing) error {
	return r.store.write(ctx, func(st *state) error {
		if _, exists := st.listings[listing.ID]; exists {
			return domain.ErrInvalidState
		}
		ids := make([]string, 0, len(listing.Items))
		for _, item := range listing.Items {
			if _, exists := st.items[item.ID]; exists {
				return domain.ErrInvalidState
			}
			item.ListingID = listing.ID
			st.items[item.ID] = item
			ids = append(ids, item.ID)
		}
		// Билеты храним отдельно, как строки inventory_items.
		stored := listing
		stored.Items = nil
		st.listings[listing.ID] = stored
		st.listingItems[listing.ID] = ids
		return nil
	})
}

func (r *listingRepository) Get(ctx context.Context, id string) (domain.Listing, error) {
	var listing domain.Listing
	err := r.store.read(ctx, func(st *state) error {
		var err error
		listing, err = st.listing(id)
		return err
	})
	return listing, err
}

func (r *listingRepository) GetForUpdate(ctx context.Context, id string) (domain.Listing, error) {
	var listing domain.Listing
	err := r.store.locked(ctx, func(st *state) error {
		var err error
		listing, err = st.listing(id)
		return err
	})
	return listing, err
}

func (r *listingRepository) UpdateStatus(ctx context.Context, id string, status domain.ListingStatus, at time.Time) error {
	return r.store.write(ctx, func(st *state) error {
		listing, ok := st.listings[id]
		if !ok {
			return domain.ErrListingNotFound
		}
		listing.Status = status
		listing.UpdatedAt = at
		st.listings[id] = listing
		return nil
	})
}

func (r *listingRepository) UpdateItemsStatus(ctx context.Context, listingID string, from []domain.ItemStatus, to domain.ItemStatus, at time.Time) (int, error) {
	changed := 0
	err := r.store.write(ctx, func(st *state) error {
		if _, ok := st.listings[listingID]; !ok {
			return domain.ErrListingNotFound
		}
		for _, id := range st.listingItems[listingID] {
			item := st.items[id]
			if !containsStatus(from, item.Status) {
				continue
			}
			item.Status = to
			item.UpdatedAt = at
			st.items[id] = item
			changed++
		}
		return nil
	})
	return changed, err
}

func (r *listingRepository) ItemsSettled(ctx context.Context, listingID string) (bool, error) {
	settled := true
	err := r.store.read(ctx, func(st *state) error {
		ids := st.listingItems[listingID]
		if len(ids) == 0 {
			settled = false
			return nil
		}
		held := st.heldByPendingOrders()
		for _, id := range ids {
			if st.items[id].Status != domain.ItemStatusSold || held[id] {
				settled = false
				return nil
			}
		}
		return nil
	})
	return settled, err
}

func (r *listingRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]string, error) {
	return r.list(ctx, limit, func(st *state, l domain.Listing) bool {
		if l.Status != domain.ListingStatusActive && l.Status != domain.ListingStatusPending {
			return false
		}
		return !l.ExpiresAt.After(before)
	})
}

func (r *listingRepository) ListPendingUnflagged(ctx context.Context, limit int) ([]string, error) {
	return r.list(ctx, limit, func(st *state, l domain.Listing) bool {
		return l.Status == domain.ListingStatusPending && len(st.flags[l.ID]) == 0
	})
}

func (r *listingRepository) ListPendingInconsistent(ctx context.Context, limit int) ([]string, error) {
	return r.list(ctx, limit, func(st *state, l domain.Listing) bool {
		if l.Status != domain.ListingStatusPending {
			return false
		}
		for _, id := range st.listingItems[l.ID] {
			if st.items[id].Status != domain.ItemStatusPending {
				return true
			}
		}
		return false
	})
}

func (r *listingRepository) list(ctx context.Context, limit int, match func(st *state, l domain.Listing) bool) ([]string, error) {
	var ids []string
	err := r.store.read(ctx, func(st *state) error {
		candidates := make([]domain.Listing, 0)
		for _, l := range st.listings {
			if match(st, l) {
				candidates = append(candidates, l)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
				return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
			}
			return candidates[i].ID < candidates[j].ID
		})
		if limit > 0 && len(candidates) > limit {
			candidates = candidates[:limit]
		}
		ids = make([]string, 0, len(candidates))
		for _, l := range candidates {
			ids = append(ids, l.ID)
		}
		return nil
	})
	return ids, err
}

func (st *state) listing(id string) (domain.Listing, error) {
	listing, ok := st.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	ids := append([]string(nil), st.listingItems[id]...)
	sort.Strings(ids)
	listing.Items = make([]domain.InventoryItem, 0, len(ids))
	for _, itemID := range ids {
		listing.Items = append(listing.Items, st.items[itemID])
	}
	return listing, nil
}

func (st *state) heldByPendingOrders() map[string]bool {
	held := make(map[string]bool)
	for _, order := range st.orders {
		if order.Status != domain.OrderStatusPending {
			continue
		}
		for _, item := range order.Items {
			held[item.InventoryItemID] = true
		}
	}
	return held
}

func containsStatus(list []domain.ItemStatus, s domain.ItemStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var _ domain.ListingRepository = (*listingRepository)(nil)

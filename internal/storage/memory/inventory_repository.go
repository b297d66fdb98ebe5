package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type inventoryRepository struct {
	store *Store
}

// LockItems возвращает билеты в порядке возрастания ID; блокировкой служит мьютекс транзакции.
func (r *inventoryRepository) LockItems(ctx context.Context, ids []string) ([]domain.LockedItem, error) {
	var result []domain.LockedItem
	err := r.store.locked(ctx, func(st *state) error {
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)

		result = make([]domain.LockedItem, 0, len(sorted))
		for _, id := range sorted {
			item, ok := st.items[id]
			if !ok {
				return fmt.Errorf("item %s: %w", id, domain.ErrItemNotFound)
			}
			result = append(result, domain.LockedItem{
				Item:          item,
				ListingStatus: st.listings[item.ListingID].Status,
			})
		}
		return nil
	})
	return result, err
}

func (r *inventoryRepository) SetStatus(ctx context.Context, ids []string, status domain.ItemStatus, at time.Time) error {
	return r.store.locked(ctx, func(st *state) error {
		for _, id := range ids {
			item, ok := st.items[id]
			if !ok {
				return fmt.Errorf("item %s: %w", id, domain.ErrItemNotFound)
			}
			item.Status = status
			item.UpdatedAt = at
			st.items[id] = item
		}
		return nil
	})
}

var _ domain.InventoryRepository = (*inventoryRepository)(nil)

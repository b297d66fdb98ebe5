package postgres

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

// LockItems берёт FOR UPDATE на строки билетов в порядке возрастания ID, листинг не блокируется.
func (r *inventoryRepository) LockItems(ctx context.Context, ids []string) ([]domain.LockedItem, error) {
	q, err := r.store.lockedConn(ctx)
	if err != nil {
		return nil, err
	}
	sorted := uniq(ids)
	sort.Strings(sorted)

	rows, err := q.QueryContext(ctx, `
		SELECT i.id, i.listing_id, i.ticket_id, i.asking_price, i.face_value, i.status,
		       i.created_at, i.updated_at, l.status
		FROM inventory_items i
		JOIN listings l ON l.id = i.listing_id
		WHERE i.id = ANY($1)
		ORDER BY i.id
		FOR UPDATE OF i
	`, sorted)
	if err != nil {
		return nil, wrapQuery("lock inventory items", err)
	}
	defer rows.Close()

	locked := make([]domain.LockedItem, 0, len(sorted))
	for rows.Next() {
		var (
			item          domain.LockedItem
			itemStatus    string
			listingStatus string
		)
		if err := rows.Scan(
			&item.Item.ID, &item.Item.ListingID, &item.Item.TicketID,
			&item.Item.AskingPrice, &item.Item.FaceValue, &itemStatus,
			&item.Item.CreatedAt, &item.Item.UpdatedAt, &listingStatus,
		); err != nil {
			return nil, wrapQuery("scan inventory item", err)
		}
		item.Item.Status = domain.ItemStatus(itemStatus)
		item.ListingStatus = domain.ListingStatus(listingStatus)
		locked = append(locked, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQuery("iterate inventory items", err)
	}

	if len(locked) != len(sorted) {
		return nil, fmt.Errorf("item %s: %w", firstMissing(sorted, locked), domain.ErrItemNotFound)
	}
	return locked, nil
}

func (r *inventoryRepository) SetStatus(ctx context.Context, ids []string, status domain.ItemStatus, at time.Time) error {
	q, err := r.store.lockedConn(ctx)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE inventory_items
		SET status = $2, updated_at = $3
		WHERE id = ANY($1)
	`, ids, string(status), at)
	if err != nil {
		return wrapQuery("update inventory status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapQuery("rows affected for inventory status", err)
	}
	if int(affected) != len(uniq(ids)) {
		return domain.ErrItemNotFound
	}
	return nil
}

func firstMissing(requested []string, found []domain.LockedItem) string {
	seen := make(map[string]bool, len(found))
	for _, item := range found {
		seen[item.Item.ID] = true
	}
	for _, id := range requested {
		if !seen[id] {
			return id
		}
	}
	return ""
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var _ domain.InventoryRepository = (*inventoryRepository)(nil)

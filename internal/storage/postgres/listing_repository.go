package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type listingRepository struct {
	store *Store
}

func (r *listingRepository) Create(ctx context.Context, listing domain.Listing) error {
	return r.store.WithinTx(ctx, func(txCtx context.Context) error {
		q := r.store.conn(txCtx)
		if _, err := q.ExecContext(txCtx, `
			INSERT INTO listings (id, seller_id, status, expires_at, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, listing.ID, listing.SellerID, string(listing.Status), listing.ExpiresAt,
			listing.CreatedAt, listing.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrInvalidState
			}
			return wrapQuery("insert listing", err)
		}

		for _, item := range listing.Items {
			if _, err := q.ExecContext(txCtx, `
				INSERT INTO inventory_items (
					id, listing_id, ticket_id, asking_price, face_value, status, created_at, updated_at
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			`, item.ID, listing.ID, item.TicketID, item.AskingPrice, item.FaceValue,
				string(item.Status), item.CreatedAt, item.UpdatedAt); err != nil {
				if isUniqueViolation(err) {
					return domain.ErrInvalidState
				}
				return wrapQuery("insert inventory item", err)
			}
		}
		return nil
	})
}

func (r *listingRepository) Get(ctx context.Context, id string) (domain.Listing, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return r.load(ctx, r.store.conn(ctx), id, "")
}

// GetForUpdate блокирует строку листинга; билеты читаются без блокировки.
func (r *listingRepository) GetForUpdate(ctx context.Context, id string) (domain.Listing, error) {
	q, err := r.store.lockedConn(ctx)
	if err != nil {
		return domain.Listing{}, err
	}
	return r.load(ctx, q, id, "FOR UPDATE")
}

func (r *listingRepository) load(ctx context.Context, q querier, id, lockClause string) (domain.Listing, error) {
	var (
		listing domain.Listing
		status  string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, seller_id, status, expires_at, created_at, updated_at
		FROM listings
		WHERE id = $1
	`+lockClause, id).Scan(
		&listing.ID, &listing.SellerID, &status, &listing.ExpiresAt, &listing.CreatedAt, &listing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Listing{}, domain.ErrListingNotFound
		}
		return domain.Listing{}, wrapQuery("select listing", err)
	}
	listing.Status = domain.ListingStatus(status)

	rows, err := q.QueryContext(ctx, `
		SELECT id, listing_id, ticket_id, asking_price, face_value, status, created_at, updated_at
		FROM inventory_items
		WHERE listing_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return domain.Listing{}, wrapQuery("load listing items", err)
	}
	defer rows.Close()

	listing.Items = make([]domain.InventoryItem, 0)
	for rows.Next() {
		var (
			item       domain.InventoryItem
			itemStatus string
		)
		if err := rows.Scan(&item.ID, &item.ListingID, &item.TicketID, &item.AskingPrice,
			&item.FaceValue, &itemStatus, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return domain.Listing{}, wrapQuery("scan listing item", err)
		}
		item.Status = domain.ItemStatus(itemStatus)
		listing.Items = append(listing.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Listing{}, wrapQuery("iterate listing items", err)
	}
	return listing, nil
}

func (r *listingRepository) UpdateStatus(ctx context.Context, id string, status domain.ListingStatus, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE listings SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), at)
	if err != nil {
		return wrapQuery("update listing status", err)
	}
	return expectAffected(res, domain.ErrListingNotFound)
}

func (r *listingRepository) UpdateItemsStatus(ctx context.Context, listingID string, from []domain.ItemStatus, to domain.ItemStatus, at time.Time) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	statuses := make([]string, 0, len(from))
	for _, s := range from {
		statuses = append(statuses, string(s))
	}
	res, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE inventory_items
		SET status = $3, updated_at = $4
		WHERE listing_id = $1 AND status = ANY($2)
	`, listingID, statuses, string(to), at)
	if err != nil {
		return 0, wrapQuery("update listing items status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapQuery("rows affected for listing items", err)
	}
	return int(affected), nil
}

func (r *listingRepository) ItemsSettled(ctx context.Context, listingID string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var total, settled int
	err := r.store.conn(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (
		           WHERE i.status = 'sold'
		             AND NOT EXISTS (
		                 SELECT 1 FROM order_items oi
		                 JOIN orders o ON o.id = oi.order_id
		                 WHERE oi.inventory_item_id = i.id AND o.status = 'pending'
		             )
		       )
		FROM inventory_items i
		WHERE i.listing_id = $1
	`, listingID).Scan(&total, &settled)
	if err != nil {
		return false, wrapQuery("check listing settled", err)
	}
	return total > 0 && total == settled, nil
}

func (r *listingRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]string, error) {
	return r.listIDs(ctx, `
		SELECT id FROM listings
		WHERE status IN ('active', 'pending') AND expires_at <= $1
		ORDER BY created_at, id
		LIMIT $2
	`, before, normalizeLimit(limit))
}

func (r *listingRepository) ListPendingUnflagged(ctx context.Context, limit int) ([]string, error) {
	return r.listIDs(ctx, `
		SELECT l.id FROM listings l
		WHERE l.status = 'pending'
		  AND NOT EXISTS (SELECT 1 FROM risk_flags f WHERE f.listing_id = l.id)
		ORDER BY l.created_at, l.id
		LIMIT $1
	`, normalizeLimit(limit))
}

func (r *listingRepository) ListPendingInconsistent(ctx context.Context, limit int) ([]string, error) {
	return r.listIDs(ctx, `
		SELECT l.id FROM listings l
		WHERE l.status = 'pending'
		  AND EXISTS (SELECT 1 FROM inventory_items i WHERE i.listing_id = l.id AND i.status <> 'pending')
		ORDER BY l.created_at, l.id
		LIMIT $1
	`, normalizeLimit(limit))
}

func (r *listingRepository) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return scanIDs(ctx, r.store.conn(ctx), query, args...)
}

var _ domain.ListingRepository = (*listingRepository)(nil)

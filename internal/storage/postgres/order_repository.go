package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type orderRepository struct {
	store *Store
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	return r.store.WithinTx(ctx, func(txCtx context.Context) error {
		q := r.store.conn(txCtx)
		if _, err := q.ExecContext(txCtx, `
			INSERT INTO orders (id, buyer_id, status, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5)
		`, order.ID, order.BuyerID, string(order.Status), order.CreatedAt, order.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrInvalidState
			}
			return wrapQuery("insert order", err)
		}

		for _, item := range order.Items {
			if _, err := q.ExecContext(txCtx, `
				INSERT INTO order_items (id, order_id, inventory_item_id, price_snapshot, created_at)
				VALUES ($1,$2,$3,$4,$5)
			`, item.ID, order.ID, item.InventoryItemID, item.PriceSnapshot, item.CreatedAt); err != nil {
				if isForeignKeyViolation(err) {
					return domain.ErrItemNotFound
				}
				return wrapQuery("insert order item", err)
			}
		}
		return nil
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return r.load(ctx, r.store.conn(ctx), `
		SELECT id, buyer_id, status, created_at, updated_at FROM orders WHERE id = $1
	`, id)
}

func (r *orderRepository) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	q, err := r.store.lockedConn(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	return r.load(ctx, q, `
		SELECT id, buyer_id, status, created_at, updated_at FROM orders WHERE id = $1 FOR UPDATE
	`, id)
}

// ListExpiredPending листает кандидатов по ключу (created_at, id): следующая страница начинается
// строго после последней отданной позиции.
func (r *orderRepository) ListExpiredPending(ctx context.Context, before time.Time, after domain.OrderRef, limit int) ([]domain.OrderRef, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.store.conn(ctx).QueryContext(ctx, `
		SELECT o.id, o.created_at
		FROM orders o
		JOIN payments p ON p.order_id = o.id
		WHERE o.status = 'pending' AND p.status = 'pending' AND o.created_at < $1
		  AND ($2::text = '' OR (o.created_at, o.id) > ($3::timestamptz, $2::text))
		ORDER BY o.created_at, o.id
		LIMIT $4
	`, before, after.ID, after.CreatedAt, normalizeLimit(limit))
	if err != nil {
		return nil, wrapQuery("list expired orders", err)
	}
	defer rows.Close()

	refs := make([]domain.OrderRef, 0)
	for rows.Next() {
		var ref domain.OrderRef
		if err := rows.Scan(&ref.ID, &ref.CreatedAt); err != nil {
			return nil, wrapQuery("scan expired order", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQuery("iterate expired orders", err)
	}
	return refs, nil
}

// ClaimExpired перепроверяет условие таймаута под блокировкой заказа и платежа.
// Строки, занятые параллельным подтверждением, пропускаются (SKIP LOCKED), а не ожидаются.
func (r *orderRepository) ClaimExpired(ctx context.Context, id string, before time.Time) (domain.Order, bool, error) {
	q, err := r.store.lockedConn(ctx)
	if err != nil {
		return domain.Order{}, false, err
	}
	order, err := r.load(ctx, q, `
		SELECT o.id, o.buyer_id, o.status, o.created_at, o.updated_at
		FROM orders o
		JOIN payments p ON p.order_id = o.id
		WHERE o.id = $1 AND o.status = 'pending' AND p.status = 'pending' AND o.created_at < $2
		FOR UPDATE OF o, p SKIP LOCKED
	`, id, before)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, err
	}
	return order, true, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), at)
	if err != nil {
		return wrapQuery("update order status", err)
	}
	return expectAffected(res, domain.ErrOrderNotFound)
}

func (r *orderRepository) load(ctx context.Context, q querier, query string, args ...any) (domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	err := q.QueryRowContext(ctx, query, args...).Scan(
		&order.ID, &order.BuyerID, &status, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, wrapQuery("select order", err)
	}
	order.Status = domain.OrderStatus(status)

	items, err := loadOrderItems(ctx, q, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

func loadOrderItems(ctx context.Context, q querier, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, inventory_item_id, price_snapshot, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY inventory_item_id ASC
	`, orderID)
	if err != nil {
		return nil, wrapQuery("load order items", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.InventoryItemID, &item.PriceSnapshot, &item.CreatedAt); err != nil {
			return nil, wrapQuery("scan order item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQuery("iterate order items", err)
	}
	return items, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)

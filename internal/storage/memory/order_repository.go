package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type orderRepository struct {
	store *Store
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	return r.store.write(ctx, func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return domain.ErrInvalidState
		}
		order.Items = append([]domain.OrderItem(nil), order.Items...)
		st.orders[order.ID] = order
		return nil
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := r.store.read(ctx, func(st *state) error {
		var err error
		order, err = st.order(id)
		return err
	})
	return order, err
}

func (r *orderRepository) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := r.store.locked(ctx, func(st *state) error {
		var err error
		order, err = st.order(id)
		return err
	})
	return order, err
}

func (r *orderRepository) ListExpiredPending(ctx context.Context, before time.Time, after domain.OrderRef, limit int) ([]domain.OrderRef, error) {
	var refs []domain.OrderRef
	err := r.store.read(ctx, func(st *state) error {
		refs = make([]domain.OrderRef, 0)
		for _, order := range st.orders {
			ref := domain.OrderRef{ID: order.ID, CreatedAt: order.CreatedAt}
			if !after.IsZero() && !after.Less(ref) {
				continue
			}
			if st.expired(order, before) {
				refs = append(refs, ref)
			}
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
		if limit > 0 && len(refs) > limit {
			refs = refs[:limit]
		}
		return nil
	})
	return refs, err
}

func (r *orderRepository) ClaimExpired(ctx context.Context, id string, before time.Time) (domain.Order, bool, error) {
	var (
		order   domain.Order
		claimed bool
	)
	err := r.store.locked(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok || !st.expired(o, before) {
			return nil
		}
		order, _ = st.order(id)
		claimed = true
		return nil
	})
	return order, claimed, err
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	return r.store.write(ctx, func(st *state) error {
		order, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		order.Status = status
		order.UpdatedAt = at
		st.orders[id] = order
		return nil
	})
}

func (st *state) order(id string) (domain.Order, error) {
	order, ok := st.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	return order, nil
}

// expired: заказ и платёж в pending, created_at < before.
func (st *state) expired(order domain.Order, before time.Time) bool {
	if order.Status != domain.OrderStatusPending || !order.CreatedAt.Before(before) {
		return false
	}
	paymentID, ok := st.paymentByOrder[order.ID]
	if !ok {
		return false
	}
	return st.payments[paymentID].Status == domain.PaymentStatusPending
}

var _ domain.OrderRepository = (*orderRepository)(nil)

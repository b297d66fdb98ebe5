package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type paymentRepository struct {
	store *Store
}

func (r *paymentRepository) Create(ctx context.Context, payment domain.Payment) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.orders[payment.OrderID]; !ok {
			return domain.ErrOrderNotFound
		}
		if _, exists := st.paymentByOrder[payment.OrderID]; exists {
			return domain.ErrInvalidState
		}
		st.payments[payment.ID] = payment
		st.paymentByOrder[payment.OrderID] = payment.ID
		return nil
	})
}

func (r *paymentRepository) GetByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	var payment domain.Payment
	err := r.store.read(ctx, func(st *state) error {
		var err error
		payment, err = st.paymentFor(orderID)
		return err
	})
	return payment, err
}

func (r *paymentRepository) GetByOrderForUpdate(ctx context.Context, orderID string) (domain.Payment, error) {
	var payment domain.Payment
	err := r.store.locked(ctx, func(st *state) error {
		var err error
		payment, err = st.paymentFor(orderID)
		return err
	})
	return payment, err
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus, at time.Time) error {
	return r.store.write(ctx, func(st *state) error {
		payment, ok := st.payments[id]
		if !ok {
			return domain.ErrPaymentNotFound
		}
		payment.Status = status
		payment.UpdatedAt = at
		st.payments[id] = payment
		return nil
	})
}

func (st *state) paymentFor(orderID string) (domain.Payment, error) {
	id, ok := st.paymentByOrder[orderID]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return st.payments[id], nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)

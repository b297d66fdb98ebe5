package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type paymentRepository struct {
	store *Store
}

func (r *paymentRepository) Create(ctx context.Context, payment domain.Payment) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO payments (id, order_id, status, amount, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, payment.ID, payment.OrderID, string(payment.Status), payment.Amount,
		payment.CreatedAt, payment.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInvalidState
		}
		if isForeignKeyViolation(err) {
			return domain.ErrOrderNotFound
		}
		return wrapQuery("insert payment", err)
	}
	return nil
}

func (r *paymentRepository) GetByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return scanPayment(r.store.conn(ctx).QueryRowContext(ctx, `
		SELECT id, order_id, status, amount, created_at, updated_at
		FROM payments WHERE order_id = $1
	`, orderID))
}

func (r *paymentRepository) GetByOrderForUpdate(ctx context.Context, orderID string) (domain.Payment, error) {
	q, err := r.store.lockedConn(ctx)
	if err != nil {
		return domain.Payment{}, err
	}
	return scanPayment(q.QueryRowContext(ctx, `
		SELECT id, order_id, status, amount, created_at, updated_at
		FROM payments WHERE order_id = $1
		FOR UPDATE
	`, orderID))
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), at)
	if err != nil {
		return wrapQuery("update payment status", err)
	}
	return expectAffected(res, domain.ErrPaymentNotFound)
}

func scanPayment(row *sql.Row) (domain.Payment, error) {
	var (
		payment domain.Payment
		status  string
	)
	if err := row.Scan(&payment.ID, &payment.OrderID, &status, &payment.Amount,
		&payment.CreatedAt, &payment.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, wrapQuery("select payment", err)
	}
	payment.Status = domain.PaymentStatus(status)
	return payment, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)

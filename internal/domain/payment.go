package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus описывает состояние платежа заказа.
type PaymentStatus string

const (
	// PaymentStatusPending: платёж создан вместе с заказом и ждёт подтверждения.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted: внешний платёжный шлюз подтвердил оплату.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed: оплата не состоялась из-за таймаута или отмены.
	PaymentStatusFailed PaymentStatus = "failed"
)

// Payment описывает платёж, принадлежащий заказу (1:1).
type Payment struct {
	ID        string
	OrderID   string
	Status    PaymentStatus
	Amount    decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderNotFound)
	}
	if p.Amount.IsNegative() {
		errs = append(errs, ErrPriceInvalid)
	}

	return errs
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа покупателя.
type OrderStatus string

const (
	// OrderStatusPending: билеты зарезервированы, ожидаем подтверждение оплаты.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid: оплата подтверждена, билеты проданы.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusCancelled: заказ отменён покупателем или по таймауту оплаты.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Причины отмены заказа для timeline и событий.
const (
	CancelReasonBuyer          = "buyer_request"
	CancelReasonPaymentTimeout = "payment_timeout"
	CancelReasonPaymentFailed  = "payment_failed"
)

// Terminal сообщает, что заказ уже разрешён и переходы из статуса запрещены.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

// OrderItem связывает заказ с билетом по идентификатору (без владения).
type OrderItem struct {
	ID              string
	InventoryItemID string
	// PriceSnapshot: цена билета на момент резервирования.
	PriceSnapshot decimal.Decimal
	CreatedAt     time.Time
}

// Order: попытка покупателя купить набор билетов.
type Order struct {
	ID        string
	BuyerID   string
	Status    OrderStatus
	Items     []OrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemIDs возвращает идентификаторы билетов заказа.
func (o *Order) ItemIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.InventoryItemID)
	}
	return ids
}

// Total возвращает сумму заказа по ценам на момент резервирования.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.PriceSnapshot)
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.BuyerID == "" {
		errs = append(errs, ErrBuyerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, item := range o.Items {
		if item.InventoryItemID == "" {
			errs = append(errs, ErrItemNotFound)
		}
	}

	return errs
}

// OrderDetails: модель чтения, заказ вместе с платежом.
type OrderDetails struct {
	Order   Order
	Payment Payment
}

// OrderRef: позиция заказа в выдаче кандидатов таймаута, упорядоченной по (created_at, id).
// Нулевое значение означает начало выдачи.
type OrderRef struct {
	ID        string
	CreatedAt time.Time
}

// IsZero сообщает, что позиция не задана.
func (r OrderRef) IsZero() bool {
	return r.ID == ""
}

// Less сравнивает позиции по (created_at, id).
func (r OrderRef) Less(other OrderRef) bool {
	if !r.CreatedAt.Equal(other.CreatedAt) {
		return r.CreatedAt.Before(other.CreatedAt)
	}
	return r.ID < other.ID
}

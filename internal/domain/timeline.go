package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

// Типы событий timeline заказа.
const (
	TimelineOrderCreated   = "OrderCreated"
	TimelineOrderPaid      = "OrderPaid"
	TimelineOrderCancelled = "OrderCancelled"
	TimelineOrderExpired   = "OrderExpired"
)

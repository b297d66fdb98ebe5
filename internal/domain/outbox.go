package domain

import "time"

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// Типы агрегатов outbox.
const (
	AggregateOrder   = "order"
	AggregateListing = "listing"
)

// Типы доменных событий, которые попадают в outbox.
const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderCancelled = "order.cancelled"
	EventOrderExpired   = "order.expired"
	EventListingFlagged = "listing.flagged"
	EventListingStatus  = "listing.status_changed"
)

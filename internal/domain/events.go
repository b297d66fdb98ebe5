package domain

import (
	"encoding/json"
	"time"
)

// OrderEventPayload: тело outbox-событий заказа.
type OrderEventPayload struct {
	OrderID  string    `json:"order_id"`
	BuyerID  string    `json:"buyer_id"`
	Status   string    `json:"status"`
	ItemIDs  []string  `json:"item_ids"`
	Total    string    `json:"total"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// ListingEventPayload: тело outbox-событий листинга.
type ListingEventPayload struct {
	ListingID string    `json:"listing_id"`
	SellerID  string    `json:"seller_id"`
	Status    string    `json:"status"`
	Flags     []string  `json:"flags,omitempty"`
	Occurred  time.Time `json:"occurred"`
}

// NewOrderEvent собирает outbox-сообщение заказа.
func NewOrderEvent(eventType string, order Order, reason string, at time.Time) (OutboxMessage, error) {
	total := order.Total()
	payload, err := json.Marshal(OrderEventPayload{
		OrderID:  order.ID,
		BuyerID:  order.BuyerID,
		Status:   string(order.Status),
		ItemIDs:  order.ItemIDs(),
		Total:    total.StringFixed(2),
		Reason:   reason,
		Occurred: at,
	})
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

// NewListingEvent собирает outbox-сообщение листинга.
func NewListingEvent(eventType string, listing Listing, flags []RiskFlag, at time.Time) (OutboxMessage, error) {
	types := make([]string, 0, len(flags))
	for _, f := range flags {
		types = append(types, string(f.Type))
	}
	payload, err := json.Marshal(ListingEventPayload{
		ListingID: listing.ID,
		SellerID:  listing.SellerID,
		Status:    string(listing.Status),
		Flags:     types,
		Occurred:  at,
	})
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{
		AggregateType: AggregateListing,
		AggregateID:   listing.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

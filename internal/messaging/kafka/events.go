package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Topics для Kafka.
const (
	TopicOrderEvents     = "resale.order.events"
	TopicListingEvents   = "resale.listing.events"
	TopicPaymentEvents   = "resale.payment.events"
	TopicDeadLetterQueue = "resale.dlq"
)

// Kafka headers.
const (
	HeaderEventType     = "x-event-type"
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// PaymentEventType: тип события платёжного провайдера.
type PaymentEventType string

const (
	PaymentEventCompleted PaymentEventType = "payment.completed"
	PaymentEventFailed    PaymentEventType = "payment.failed"
)

// PaymentEvent: результат оплаты заказа от внешнего провайдера.
type PaymentEvent struct {
	EventType PaymentEventType `json:"event_type"`
	OrderID   string           `json:"order_id"`
	PaymentID string           `json:"payment_id,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// OutboxEnvelope: конверт, в котором outbox-сообщение уходит в топик.
type OutboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// DeadLetterMessage: тело сообщения consumer-а, отправленного в DLQ.
type DeadLetterMessage struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int32     `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	FailedAt          time.Time `json:"failed_at"`
	Attempts          int       `json:"attempts"`
}

// ParsePaymentEvent парсит PaymentEvent из сообщения.
func ParsePaymentEvent(message *sarama.ConsumerMessage) (*PaymentEvent, error) {
	var event PaymentEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment event: %w", err)
	}
	if event.OrderID == "" {
		return nil, fmt.Errorf("payment event without order_id")
	}
	return &event, nil
}

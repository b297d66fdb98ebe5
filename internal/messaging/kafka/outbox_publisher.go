package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения, выбирая topic по типу агрегата.
type OutboxTopicPublisher struct {
	producer *Producer
	topics   map[string]string
	fallback string
}

// NewOutboxPublisher создаёт паблишер: события заказов идут в orderTopic, листингов в listingTopic.
func NewOutboxPublisher(producer *Producer, orderTopic, listingTopic string) *OutboxTopicPublisher {
	if orderTopic == "" {
		orderTopic = TopicOrderEvents
	}
	if listingTopic == "" {
		listingTopic = TopicListingEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topics: map[string]string{
			domain.AggregateOrder:   orderTopic,
			domain.AggregateListing: listingTopic,
		},
		fallback: orderTopic,
	}
}

// NewDLQPublisher публикует все сообщения в один topic dead letter queue.
func NewDLQPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	return &OutboxTopicPublisher{producer: producer, topics: map[string]string{}, fallback: topic}
}

// Topic возвращает topic для типа агрегата.
func (p *OutboxTopicPublisher) Topic(aggregateType string) string {
	if topic, ok := p.topics[aggregateType]; ok {
		return topic
	}
	return p.fallback
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := OutboxEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}
	return p.producer.PublishEvent(p.Topic(event.AggregateType), key, envelope, header(HeaderEventType, event.EventType))
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)

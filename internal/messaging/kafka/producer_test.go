package kafka

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer, log.WithField("component", "kafka-producer-test"))

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicPaymentEvents {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var event PaymentEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.OrderID != "order-42" || event.EventType != PaymentEventCompleted {
			return fmt.Errorf("unexpected event %+v", event)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != HeaderEventType {
			return fmt.Errorf("unexpected headers %+v", msg.Headers)
		}
		return nil
	})

	event := PaymentEvent{EventType: PaymentEventCompleted, OrderID: "order-42"}
	if err := producer.PublishEvent(TopicPaymentEvents, "order-42", event, header(HeaderEventType, string(event.EventType))); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer, nil)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(TopicOrderEvents, "order-1", map[string]string{"order_id": "order-1"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer, nil)

	if err := producer.PublishEvent(TopicOrderEvents, "k", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducerConfig(t *testing.T) {
	cfg := ProducerConfig()
	if !cfg.Producer.Idempotent || cfg.Net.MaxOpenRequests != 1 {
		t.Fatal("producer must be idempotent with a single in-flight request")
	}
	if cfg.Producer.RequiredAcks != sarama.WaitForAll {
		t.Fatalf("unexpected acks: %v", cfg.Producer.RequiredAcks)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid producer config: %v", err)
	}
}

func TestParsePaymentEvent(t *testing.T) {
	event, err := ParsePaymentEvent(&sarama.ConsumerMessage{
		Value: []byte(`{"event_type":"payment.failed","order_id":"o-1","reason":"card_declined"}`),
	})
	if err != nil {
		t.Fatalf("ParsePaymentEvent failed: %v", err)
	}
	if event.EventType != PaymentEventFailed || event.OrderID != "o-1" || event.Reason != "card_declined" {
		t.Fatalf("unexpected event: %+v", event)
	}

	if _, err := ParsePaymentEvent(&sarama.ConsumerMessage{Value: []byte("{")}); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if _, err := ParsePaymentEvent(&sarama.ConsumerMessage{Value: []byte(`{"event_type":"payment.completed"}`)}); err == nil {
		t.Fatal("expected missing order_id error")
	}
}

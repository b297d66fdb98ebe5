package app

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/resale/internal/messaging/kafka"
)

// ParseBrokers разбирает список брокеров через запятую, отбрасывая пустые элементы.
func ParseBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// initKafkaProducer создаёт producer, если брокеры заданы.
// При пустом списке возвращает nil, nil: сервис работает без публикации outbox.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// startPaymentConsumer подписывается на события платёжного провайдера.
// Возвращает nil, nil, если брокеры не заданы.
func startPaymentConsumer(ctx context.Context, cfg Config, processor kafka.PaymentProcessor, dlq *kafka.Producer, logger *log.Entry) (*kafka.Consumer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, nil
	}

	options := []kafka.ConsumerOption{
		kafka.WithConsumerLogger(logger.WithField("component", "payment-consumer")),
	}
	if dlq != nil {
		options = append(options, kafka.WithDLQProducer(dlq))
	}

	handler := kafka.NewPaymentEventsHandler(processor, logger.WithField("component", "payment-events"))
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.PaymentEventsGroup, []string{kafka.TopicPaymentEvents}, handler, options...)
	if err != nil {
		return nil, err
	}
	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Stop()
		return nil, err
	}
	return consumer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// stopConsumer останавливает consumer если он не nil.
func stopConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	}
}

package kafka

import (
	"context"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

// PaymentProcessor применяет результат оплаты к заказу.
type PaymentProcessor interface {
	ConfirmPayment(ctx context.Context, orderID string) error
	CancelOrder(ctx context.Context, orderID, reason string) error
}

// NewPaymentEventsHandler связывает события resale.payment.events с жизненным циклом заказа.
// Заказ, уже разрешённый другим путём (таймаут, повторная доставка), считается обработанным.
// Ошибки хранилища возвращаются наружу, чтобы consumer повторил сообщение.
func NewPaymentEventsHandler(processor PaymentProcessor, logger *log.Entry) MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "payment-events")
	}
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		event, err := ParsePaymentEvent(message)
		if err != nil {
			logger.WithError(err).WithField("offset", message.Offset).Warn("skipping malformed payment event")
			return nil
		}

		entry := logger.WithFields(log.Fields{
			"order_id":   event.OrderID,
			"event_type": event.EventType,
		})

		switch event.EventType {
		case PaymentEventCompleted:
			err = processor.ConfirmPayment(ctx, event.OrderID)
		case PaymentEventFailed:
			err = processor.CancelOrder(ctx, event.OrderID, domain.CancelReasonPaymentFailed)
		default:
			entry.Debug("ignoring unknown payment event")
			return nil
		}

		switch {
		case err == nil:
			return nil
		case domain.IsInvalidState(err), domain.IsNotFound(err):
			entry.WithError(err).Info("payment event for resolved order, skipping")
			return nil
		default:
			return err
		}
	}
}

package checkout

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

// RetryConfig задаёт повтор транзакции при временных сбоях хранилища.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  20 * time.Millisecond,
		MaxDelay:      500 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

// withRetry повторяет fn целиком, пока ошибка классифицирована как domain.ErrStorage.
// Все прочие ошибки (конфликт, неверный статус, not found) возвращаются сразу.
func (s *Service) withRetry(ctx context.Context, operation, orderID string, fn func() error) error {
	cfg := s.retry
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var err error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !domain.IsRetryable(err) {
			if err == nil && attempt > 1 {
				s.logger.WithFields(log.Fields{
					"operation": operation,
					"order_id":  orderID,
					"attempt":   attempt,
				}).Info("operation succeeded after retry")
			}
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		s.logger.WithError(err).WithFields(log.Fields{
			"operation": operation,
			"order_id":  orderID,
			"attempt":   attempt,
			"delay":     delay,
		}).Warn("transient storage failure, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	s.logger.WithError(err).WithFields(log.Fields{
		"operation":    operation,
		"order_id":     orderID,
		"max_attempts": cfg.MaxAttempts,
	}).Error("operation failed after all retry attempts")
	return err
}

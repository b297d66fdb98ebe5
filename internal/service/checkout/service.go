// Package checkout реализует жизненный цикл заказа: создание с резервированием,
// подтверждение оплаты, отмену и истечение по таймауту.
package checkout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/resale/internal/clock"
	"github.com/vladislavdragonenkov/resale/internal/domain"
	"github.com/vladislavdragonenkov/resale/internal/metrics"
	"github.com/vladislavdragonenkov/resale/internal/service/reservation"
)

// Service: менеджер жизненного цикла заказа. Каждая мутация выполняется одной транзакцией.
type Service struct {
	repos       domain.Repositories
	reservation *reservation.Service
	clock       clock.Clock
	logger      *log.Entry
	metrics     *metrics.CheckoutMetrics
	retry       RetryConfig
	newID       func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock подменяет источник времени.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		s.clock = clk
	}
}

// WithMetrics включает метрики checkout.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRetry задаёт повтор транзакций при ErrStorage.
func WithRetry(cfg RetryConfig) Option {
	return func(s *Service) {
		s.retry = cfg
	}
}

// WithIDGenerator подменяет генератор идентификаторов (детерминированные тесты).
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// NewService создаёт сервис заказов поверх набора репозиториев.
func NewService(repos domain.Repositories, options ...Option) *Service {
	s := &Service{
		repos: repos,
		retry: RetryConfig{MaxAttempts: 1},
		newID: uuid.NewString,
	}
	for _, option := range options {
		option(s)
	}
	if s.clock == nil {
		s.clock = clock.NewSystem()
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "checkout")
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.reservation = reservation.NewService(repos.Inventory, s.clock, s.logger.WithField("component", "reservation"))
	return s
}

// CreateOrder резервирует билеты и создаёт заказ с pending-платежом.
func (s *Service) CreateOrder(ctx context.Context, buyerID string, itemIDs []string) (string, error) {
	if buyerID == "" {
		return "", domain.ErrBuyerRequired
	}
	if len(itemIDs) == 0 {
		return "", domain.ErrItemsRequired
	}

	start := time.Now()
	var orderID string
	err := s.withRetry(ctx, "create_order", "", func() error {
		var err error
		orderID, err = s.createOrder(ctx, buyerID, itemIDs)
		return err
	})
	s.metrics.ObserveOperation("create_order", err, time.Since(start))

	logger := s.logger.WithFields(log.Fields{"buyer_id": buyerID, "items": itemIDs})
	if err != nil {
		if domain.IsConflict(err) {
			s.metrics.RecordReservationConflict()
			logger.WithError(err).Info("order rejected: inventory unavailable")
		} else {
			logger.WithError(err).Warn("create order failed")
		}
		return "", err
	}

	s.metrics.RecordOrderCreated()
	logger.WithField("order_id", orderID).Info("order created")
	return orderID, nil
}

func (s *Service) createOrder(ctx context.Context, buyerID string, itemIDs []string) (string, error) {
	orderID := s.newID()
	err := s.repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		items, err := s.reservation.Reserve(txCtx, itemIDs)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		order := domain.Order{
			ID:        orderID,
			BuyerID:   buyerID,
			Status:    domain.OrderStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, item := range items {
			order.Items = append(order.Items, domain.OrderItem{
				ID:              s.newID(),
				InventoryItemID: item.ID,
				PriceSnapshot:   item.AskingPrice,
				CreatedAt:       now,
			})
		}

		if err := s.repos.Orders.Create(txCtx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		payment := domain.Payment{
			ID:        s.newID(),
			OrderID:   orderID,
			Status:    domain.PaymentStatusPending,
			Amount:    order.Total(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repos.Payments.Create(txCtx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return s.record(txCtx, order, domain.TimelineOrderCreated, domain.EventOrderCreated, "", now)
	})
	if err != nil {
		return "", err
	}
	return orderID, nil
}

// ConfirmPayment переводит заказ в Paid. Повторный вызов для оплаченного заказа ничего не меняет.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string) error {
	start := time.Now()
	var alreadyPaid bool
	err := s.withRetry(ctx, "confirm_payment", orderID, func() error {
		var err error
		alreadyPaid, err = s.confirmPayment(ctx, orderID)
		return err
	})
	s.metrics.ObserveOperation("confirm_payment", err, time.Since(start))

	logger := s.logger.WithField("order_id", orderID)
	if err != nil {
		logger.WithError(err).Warn("confirm payment failed")
		return err
	}
	if alreadyPaid {
		logger.Debug("payment already confirmed")
		return nil
	}
	s.metrics.RecordOrderPaid()
	logger.Info("order paid")
	return nil
}

func (s *Service) confirmPayment(ctx context.Context, orderID string) (bool, error) {
	alreadyPaid := false
	err := s.repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		order, payment, err := s.lockOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderStatusPaid && payment.Status == domain.PaymentStatusCompleted {
			alreadyPaid = true
			return nil
		}
		if order.Status != domain.OrderStatusPending || payment.Status != domain.PaymentStatusPending {
			return fmt.Errorf("confirm order %s in status %s/%s: %w", orderID, order.Status, payment.Status, domain.ErrInvalidState)
		}

		locked, err := s.repos.Inventory.LockItems(txCtx, order.ItemIDs())
		if err != nil {
			return err
		}
		listingIDs := make(map[string]struct{})
		for _, li := range locked {
			if li.Item.Status != domain.ItemStatusSold {
				return fmt.Errorf("order %s item %s is %s: %w", orderID, li.Item.ID, li.Item.Status, domain.ErrInvalidState)
			}
			// Листинг завершился, пока заказ ждал оплаты: продажа не засчитывается,
			// свипер вернёт билет в терминальный статус листинга.
			if li.ListingStatus != domain.ListingStatusActive && li.ListingStatus != domain.ListingStatusSold {
				return fmt.Errorf("order %s listing %s is %s: %w", orderID, li.Item.ListingID, li.ListingStatus, domain.ErrInvalidState)
			}
			listingIDs[li.Item.ListingID] = struct{}{}
		}

		now := s.clock.Now()
		if err := s.repos.Payments.UpdateStatus(txCtx, payment.ID, domain.PaymentStatusCompleted, now); err != nil {
			return err
		}
		if err := s.repos.Orders.UpdateStatus(txCtx, order.ID, domain.OrderStatusPaid, now); err != nil {
			return err
		}
		order.Status = domain.OrderStatusPaid

		if err := s.settleListings(txCtx, sortedKeys(listingIDs), now); err != nil {
			return err
		}
		return s.record(txCtx, order, domain.TimelineOrderPaid, domain.EventOrderPaid, "", now)
	})
	return alreadyPaid, err
}

// settleListings переводит Active-листинги в Sold, когда все их билеты оплачены.
func (s *Service) settleListings(ctx context.Context, listingIDs []string, now time.Time) error {
	for _, id := range listingIDs {
		listing, err := s.repos.Listings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if listing.Status != domain.ListingStatusActive {
			continue
		}
		settled, err := s.repos.Listings.ItemsSettled(ctx, id)
		if err != nil {
			return err
		}
		if !settled {
			continue
		}
		if err := s.repos.Listings.UpdateStatus(ctx, id, domain.ListingStatusSold, now); err != nil {
			return err
		}
		listing.Status = domain.ListingStatusSold
		msg, err := domain.NewListingEvent(domain.EventListingStatus, listing, nil, now)
		if err != nil {
			return fmt.Errorf("marshal listing event: %w", err)
		}
		if _, err := s.repos.Outbox.Enqueue(ctx, msg); err != nil {
			return err
		}
		s.logger.WithField("listing_id", id).Info("listing sold out")
	}
	return nil
}

// CancelOrder отменяет pending-заказ и возвращает билеты в продажу.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) error {
	if reason == "" {
		reason = domain.CancelReasonBuyer
	}

	start := time.Now()
	err := s.withRetry(ctx, "cancel_order", orderID, func() error {
		return s.repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
			order, payment, err := s.lockOrder(txCtx, orderID)
			if err != nil {
				return err
			}
			if order.Status != domain.OrderStatusPending {
				return fmt.Errorf("cancel order %s in status %s: %w", orderID, order.Status, domain.ErrInvalidState)
			}
			return s.abandon(txCtx, order, payment, domain.TimelineOrderCancelled, domain.EventOrderCancelled, reason)
		})
	})
	s.metrics.ObserveOperation("cancel_order", err, time.Since(start))

	logger := s.logger.WithFields(log.Fields{"order_id": orderID, "reason": reason})
	if err != nil {
		logger.WithError(err).Warn("cancel order failed")
		return err
	}
	s.metrics.RecordOrderCancelled(reason)
	logger.Info("order cancelled")
	return nil
}

// ExpireOrder отменяет заказ по таймауту оплаты, если к моменту блокировки он всё ещё
// pending и создан не позже before. false означает, что заказ уже разрешён или занят.
func (s *Service) ExpireOrder(ctx context.Context, orderID string, before time.Time) (bool, error) {
	expired := false
	err := s.repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		order, ok, err := s.repos.Orders.ClaimExpired(txCtx, orderID, before)
		if err != nil || !ok {
			return err
		}
		payment, err := s.repos.Payments.GetByOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if err := s.abandon(txCtx, order, payment, domain.TimelineOrderExpired, domain.EventOrderExpired, domain.CancelReasonPaymentTimeout); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if expired {
		s.metrics.RecordOrderCancelled(domain.CancelReasonPaymentTimeout)
		s.logger.WithField("order_id", orderID).Info("order expired: payment timeout")
	}
	return expired, nil
}

// GetOrder возвращает заказ вместе с платежом.
func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.OrderDetails, error) {
	order, err := s.repos.Orders.Get(ctx, orderID)
	if err != nil {
		return domain.OrderDetails{}, err
	}
	payment, err := s.repos.Payments.GetByOrder(ctx, orderID)
	if err != nil {
		return domain.OrderDetails{}, err
	}
	return domain.OrderDetails{Order: order, Payment: payment}, nil
}

// Timeline возвращает журнал событий заказа.
func (s *Service) Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	return s.repos.Timeline.List(ctx, orderID)
}

// lockOrder блокирует заказ, затем платёж.
func (s *Service) lockOrder(ctx context.Context, orderID string) (domain.Order, domain.Payment, error) {
	order, err := s.repos.Orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return domain.Order{}, domain.Payment{}, err
	}
	payment, err := s.repos.Payments.GetByOrderForUpdate(ctx, orderID)
	if err != nil {
		return domain.Order{}, domain.Payment{}, err
	}
	return order, payment, nil
}

// abandon освобождает билеты, помечает платёж Failed и заказ Cancelled.
func (s *Service) abandon(ctx context.Context, order domain.Order, payment domain.Payment, timelineType, eventType, reason string) error {
	if err := s.reservation.Release(ctx, order.ItemIDs()); err != nil {
		return err
	}
	now := s.clock.Now()
	if err := s.repos.Payments.UpdateStatus(ctx, payment.ID, domain.PaymentStatusFailed, now); err != nil {
		return err
	}
	if err := s.repos.Orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled, now); err != nil {
		return err
	}
	order.Status = domain.OrderStatusCancelled
	return s.record(ctx, order, timelineType, eventType, reason, now)
}

// record пишет событие timeline и outbox в транзакции изменения.
func (s *Service) record(ctx context.Context, order domain.Order, timelineType, eventType, reason string, now time.Time) error {
	if err := s.repos.Timeline.Append(ctx, domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     timelineType,
		Reason:   reason,
		Occurred: now,
	}); err != nil {
		return err
	}
	msg, err := domain.NewOrderEvent(eventType, order, reason, now)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	if _, err := s.repos.Outbox.Enqueue(ctx, msg); err != nil {
		return err
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

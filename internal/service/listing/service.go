// Package listing реализует пути записи листингов: подачу с оценкой риска, модерацию,
// снятие продавцом, истечение срока и восстановление pending-листингов.
package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/resale/internal/clock"
	"github.com/vladislavdragonenkov/resale/internal/domain"
	"github.com/vladislavdragonenkov/resale/internal/metrics"
	"github.com/vladislavdragonenkov/resale/internal/service/risk"
)

// ItemInput: билет в заявке продавца.
type ItemInput struct {
	ID          string
	TicketID    string
	AskingPrice decimal.Decimal
	FaceValue   decimal.Decimal
}

// SubmitInput: заявка на публикацию листинга.
type SubmitInput struct {
	ListingID string
	SellerID  string
	ExpiresAt time.Time
	Items     []ItemInput
}

// SubmitResult содержит сохранённый листинг и пометки, из-за которых он ушёл на модерацию.
type SubmitResult struct {
	Listing domain.Listing
	Flags   []domain.RiskFlag
}

// BackfillResult: счётчики одного прохода Backfill.
type BackfillResult struct {
	ItemsReset       int
	ListingsPromoted int
	ListingsFlagged  int
}

// Service управляет жизненным циклом листингов.
type Service struct {
	repos   domain.Repositories
	risk    *risk.Engine
	clock   clock.Clock
	logger  *log.Entry
	metrics *metrics.RiskMetrics
	newID   func() string
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

// WithMetrics включает счётчики переходов листингов.
func WithMetrics(m *metrics.RiskMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// NewService создаёт сервис листингов. engine используется для оценки риска при подаче и backfill.
func NewService(repos domain.Repositories, engine *risk.Engine, options ...Option) *Service {
	s := &Service{
		repos: repos,
		risk:  engine,
		newID: uuid.NewString,
	}
	for _, option := range options {
		option(s)
	}
	if s.clock == nil {
		s.clock = clock.NewSystem()
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "listing")
	}
	if s.risk == nil {
		s.risk = risk.NewEngine(repos, risk.WithClock(s.clock), risk.WithLogger(s.logger))
	}
	return s
}

// Submit проверяет заявку, оценивает риск и сохраняет листинг одной транзакцией.
// Помеченный листинг уходит на модерацию (Pending), чистый сразу публикуется (Active).
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	now := s.clock.Now()
	listing := s.build(in, now)
	if err := validate(listing, now); err != nil {
		return SubmitResult{}, err
	}

	var result SubmitResult
	err := s.repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		seller, err := s.risk.Profile(txCtx, listing.SellerID)
		if err != nil {
			return err
		}
		flags := risk.Evaluate(listing, seller, s.risk.Rules(), now)

		status := domain.ListingStatusActive
		if len(flags) > 0 {
			status = domain.ListingStatusPending
		}
		listing.Status = status
		for i := range listing.Items {
			listing.Items[i].Status = status.ItemStatusFor()
		}

		if err := s.repos.Listings.Create(txCtx, listing); err != nil {
			return fmt.Errorf("create listing: %w", err)
		}
		inserted, err := s.risk.Persist(txCtx, listing, flags)
		if err != nil {
			return err
		}
		if err := s.emit(txCtx, listing, now); err != nil {
			return err
		}
		result = SubmitResult{Listing: listing, Flags: inserted}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("seller_id", in.SellerID).Warn("listing submission failed")
		return SubmitResult{}, err
	}

	s.metrics.RecordListingTransition(string(result.Listing.Status))
	s.logger.WithFields(log.Fields{
		"listing_id": result.Listing.ID,
		"status":     result.Listing.Status,
		"flags":      len(result.Flags),
	}).Info("listing submitted")
	return result, nil
}

// Approve публикует листинг после модерации: Pending -> Active, билеты Pending -> Active.
func (s *Service) Approve(ctx context.Context, listingID string) error {
	return s.transition(ctx, listingID, domain.ListingStatusActive, "")
}

// Reject отклоняет листинг на модерации: Pending -> Rejected, билеты -> Cancelled.
func (s *Service) Reject(ctx context.Context, listingID, reason string) error {
	return s.transition(ctx, listingID, domain.ListingStatusRejected, reason)
}

// Cancel снимает листинг по просьбе продавца. Проданные билеты не меняются.
func (s *Service) Cancel(ctx context.Context, listingID string) error {
	return s.transition(ctx, listingID, domain.ListingStatusCancelled, "")
}

// ExpireDue переводит в Expired не больше limit листингов с истёкшим сроком.
// Листинг, который успел перейти в другой статус, пропускается.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	ids, err := s.repos.Listings.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		err := s.transition(ctx, id, domain.ListingStatusExpired, "")
		switch {
		case err == nil:
			expired++
		case domain.IsInvalidState(err):
			continue
		default:
			return expired, err
		}
	}
	return expired, nil
}

// transition переводит листинг в to и приводит его непроданные билеты к статусу to.ItemStatusFor().
// Билеты блокируются раньше листинга, как и в checkout.
func (s *Service) transition(ctx context.Context, listingID string, to domain.ListingStatus, reason string) error {
	logger := s.logger.WithFields(log.Fields{"listing_id": listingID, "status": to})

	err := s.repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		snapshot, err := s.repos.Listings.Get(txCtx, listingID)
		if err != nil {
			return err
		}
		if _, err := s.repos.Inventory.LockItems(txCtx, itemIDs(snapshot)); err != nil {
			return err
		}
		listing, err := s.repos.Listings.GetForUpdate(txCtx, listingID)
		if err != nil {
			return err
		}
		if !listing.Status.CanTransitionTo(to) {
			return fmt.Errorf("listing %s %s -> %s: %w", listingID, listing.Status, to, domain.ErrInvalidState)
		}

		now := s.clock.Now()
		if err := s.repos.Listings.UpdateStatus(txCtx, listingID, to, now); err != nil {
			return err
		}
		unsold := []domain.ItemStatus{domain.ItemStatusPending, domain.ItemStatusActive}
		if _, err := s.repos.Listings.UpdateItemsStatus(txCtx, listingID, unsold, to.ItemStatusFor(), now); err != nil {
			return err
		}
		listing.Status = to
		return s.emit(txCtx, listing, now)
	})
	if err != nil {
		logger.WithError(err).Warn("listing transition failed")
		return err
	}

	s.metrics.RecordListingTransition(string(to))
	if reason != "" {
		logger = logger.WithField("reason", reason)
	}
	logger.Info("listing status changed")
	return nil
}

// Backfill восстанавливает инварианты pending-листингов и догоняет оценку риска.
// Повторный запуск на согласованных данных ничего не меняет.
func (s *Service) Backfill(ctx context.Context, limit int) (BackfillResult, error) {
	var result BackfillResult

	ids, err := s.repos.Listings.ListPendingInconsistent(ctx, limit)
	if err != nil {
		return result, err
	}
	for _, id := range ids {
		reset, promoted, err := s.repair(ctx, id)
		if err != nil {
			return result, fmt.Errorf("repair listing %s: %w", id, err)
		}
		result.ItemsReset += reset
		if promoted {
			result.ListingsPromoted++
		}
	}

	ids, err = s.repos.Listings.ListPendingUnflagged(ctx, limit)
	if err != nil {
		return result, err
	}
	for _, id := range ids {
		flags, err := s.risk.EvaluateListingRisk(ctx, id)
		if err != nil {
			return result, fmt.Errorf("evaluate listing %s: %w", id, err)
		}
		if len(flags) > 0 {
			result.ListingsFlagged++
		}
	}

	s.logger.WithFields(log.Fields{
		"items_reset":       result.ItemsReset,
		"listings_promoted": result.ListingsPromoted,
		"listings_flagged":  result.ListingsFlagged,
	}).Info("listing backfill finished")
	return result, nil
}

// repair чинит один pending-листинг. Если у листинга уже есть проданные билеты, его нельзя
// вернуть на модерацию: он публикуется, а оставшиеся pending-билеты активируются.
// Иначе активные билеты возвращаются в Pending.
func (s *Service) repair(ctx context.Context, listingID string) (int, bool, error) {
	reset, promoted := 0, false
	err := s.repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		snapshot, err := s.repos.Listings.Get(txCtx, listingID)
		if err != nil {
			return err
		}
		locked, err := s.repos.Inventory.LockItems(txCtx, itemIDs(snapshot))
		if err != nil {
			return err
		}
		listing, err := s.repos.Listings.GetForUpdate(txCtx, listingID)
		if err != nil {
			return err
		}
		if listing.Status != domain.ListingStatusPending {
			return nil
		}

		hasSold := false
		for _, li := range locked {
			if li.Item.Status == domain.ItemStatusSold {
				hasSold = true
				break
			}
		}

		now := s.clock.Now()
		if hasSold {
			if err := s.repos.Listings.UpdateStatus(txCtx, listingID, domain.ListingStatusActive, now); err != nil {
				return err
			}
			if _, err := s.repos.Listings.UpdateItemsStatus(txCtx, listingID,
				[]domain.ItemStatus{domain.ItemStatusPending}, domain.ItemStatusActive, now); err != nil {
				return err
			}
			listing.Status = domain.ListingStatusActive
			promoted = true
			return s.emit(txCtx, listing, now)
		}

		reset, err = s.repos.Listings.UpdateItemsStatus(txCtx, listingID,
			[]domain.ItemStatus{domain.ItemStatusActive}, domain.ItemStatusPending, now)
		return err
	})
	if err != nil {
		return 0, false, err
	}

	if promoted {
		s.metrics.RecordListingTransition(string(domain.ListingStatusActive))
		s.logger.WithField("listing_id", listingID).Warn("pending listing held sold items, promoted to active")
	} else if reset > 0 {
		s.logger.WithFields(log.Fields{"listing_id": listingID, "items": reset}).Warn("pending listing items reset")
	}
	return reset, promoted, nil
}

func (s *Service) emit(ctx context.Context, listing domain.Listing, now time.Time) error {
	msg, err := domain.NewListingEvent(domain.EventListingStatus, listing, nil, now)
	if err != nil {
		return fmt.Errorf("marshal listing event: %w", err)
	}
	_, err = s.repos.Outbox.Enqueue(ctx, msg)
	return err
}

func (s *Service) build(in SubmitInput, now time.Time) domain.Listing {
	listing := domain.Listing{
		ID:        in.ListingID,
		SellerID:  in.SellerID,
		Status:    domain.ListingStatusPending,
		ExpiresAt: in.ExpiresAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if listing.ID == "" {
		listing.ID = s.newID()
	}
	for _, item := range in.Items {
		if item.ID == "" {
			item.ID = s.newID()
		}
		listing.Items = append(listing.Items, domain.InventoryItem{
			ID:          item.ID,
			ListingID:   listing.ID,
			TicketID:    item.TicketID,
			AskingPrice: item.AskingPrice,
			FaceValue:   item.FaceValue,
			Status:      domain.ItemStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return listing
}

func validate(listing domain.Listing, now time.Time) error {
	errs := listing.ValidateInvariants()
	if !listing.ExpiresAt.After(now) {
		errs = append(errs, domain.ErrExpiryInPast)
	}
	return errors.Join(errs...)
}

func itemIDs(listing domain.Listing) []string {
	ids := make([]string, 0, len(listing.Items))
	for _, item := range listing.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

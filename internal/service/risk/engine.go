package risk

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/resale/internal/clock"
	"github.com/vladislavdragonenkov/resale/internal/domain"
	"github.com/vladislavdragonenkov/resale/internal/metrics"
)

// Engine сохраняет результаты Evaluate. Повторная оценка не создаёт дублей.
type Engine struct {
	repos   domain.Repositories
	rules   Rules
	clock   clock.Clock
	logger  *log.Entry
	metrics *metrics.RiskMetrics
	newID   func() string
}

// Option настраивает Engine.
type Option func(*Engine)

// WithRules задаёт пороги правил.
func WithRules(rules Rules) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock подменяет источник времени.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		e.clock = clk
	}
}

// WithMetrics включает метрики пометок.
func WithMetrics(m *metrics.RiskMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine создаёт движок оценки риска.
func NewEngine(repos domain.Repositories, options ...Option) *Engine {
	e := &Engine{
		repos: repos,
		rules: DefaultRules(),
		newID: uuid.NewString,
	}
	for _, option := range options {
		option(e)
	}
	if e.clock == nil {
		e.clock = clock.NewSystem()
	}
	if e.logger == nil {
		e.logger = log.WithField("component", "risk-engine")
	}
	return e
}

// Rules возвращает действующие пороги.
func (e *Engine) Rules() Rules {
	return e.rules
}

// EvaluateListingRisk оценивает сохранённый листинг и записывает новые пометки.
// Возвращает только пометки, вставленные в этом вызове.
func (e *Engine) EvaluateListingRisk(ctx context.Context, listingID string) ([]domain.RiskFlag, error) {
	var inserted []domain.RiskFlag
	err := e.repos.Tx.WithinTx(ctx, func(txCtx context.Context) error {
		listing, err := e.repos.Listings.GetForUpdate(txCtx, listingID)
		if err != nil {
			return err
		}
		seller, err := e.Profile(txCtx, listing.SellerID)
		if err != nil {
			return err
		}

		flags := Evaluate(listing, seller, e.rules, e.clock.Now())
		inserted, err = e.Persist(txCtx, listing, flags)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// Persist вставляет типы пометок, которых у листинга ещё нет, и пишет событие listing.flagged.
// Вызывается внутри транзакции вызывающей стороны (например, при подаче листинга).
func (e *Engine) Persist(ctx context.Context, listing domain.Listing, flags []domain.RiskFlag) ([]domain.RiskFlag, error) {
	if len(flags) == 0 {
		return nil, nil
	}

	existing, err := e.repos.RiskFlags.ListByListing(ctx, listing.ID)
	if err != nil {
		return nil, err
	}
	present := make(map[domain.RiskFlagType]bool, len(existing))
	for _, f := range existing {
		present[f.Type] = true
	}

	inserted := make([]domain.RiskFlag, 0, len(flags))
	for _, flag := range flags {
		if present[flag.Type] {
			continue
		}
		flag.ID = e.newID()
		flag.ListingID = listing.ID
		ok, err := e.repos.RiskFlags.Insert(ctx, flag)
		if err != nil {
			return nil, fmt.Errorf("insert %s flag: %w", flag.Type, err)
		}
		if !ok {
			continue
		}
		present[flag.Type] = true
		inserted = append(inserted, flag)
		e.metrics.RecordFlag(string(flag.Type))
	}

	if len(inserted) == 0 {
		return inserted, nil
	}

	msg, err := domain.NewListingEvent(domain.EventListingFlagged, listing, inserted, e.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("marshal listing flagged event: %w", err)
	}
	if _, err := e.repos.Outbox.Enqueue(ctx, msg); err != nil {
		return nil, err
	}

	e.logger.WithFields(log.Fields{
		"listing_id": listing.ID,
		"flags":      len(inserted),
	}).Info("listing flagged")
	return inserted, nil
}

// Profile возвращает профиль продавца; неизвестный продавец считается новым (tier 0).
func (e *Engine) Profile(ctx context.Context, sellerID string) (domain.SellerProfile, error) {
	profile, err := e.repos.Sellers.GetProfile(ctx, sellerID)
	if errors.Is(err, domain.ErrSellerNotFound) {
		return domain.SellerProfile{SellerID: sellerID}, nil
	}
	return profile, err
}

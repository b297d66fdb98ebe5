// Package sweeper периодически отменяет заказы, не оплаченные за отведённое время,
// и снимает листинги с истёкшим сроком.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/resale/internal/clock"
	"github.com/vladislavdragonenkov/resale/internal/domain"
	"github.com/vladislavdragonenkov/resale/internal/lock"
)

const (
	defaultInterval  = 60 * time.Second
	defaultDeadline  = 5 * time.Minute
	defaultBatchSize = 200

	leaderLockKey = "sweeper"
)

var (
	sweeperRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resale_sweeper_runs_total",
		Help: "Total number of sweeper passes grouped by result.",
	}, []string{"result"})
	sweeperOrdersExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resale_sweeper_orders_expired_total",
		Help: "Total number of orders cancelled by payment timeout.",
	})
	sweeperOrderFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resale_sweeper_order_failures_total",
		Help: "Total number of timeout candidates that failed to expire.",
	})
	sweeperListingsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resale_sweeper_listings_expired_total",
		Help: "Total number of listings moved to expired by the sweeper.",
	})
	sweeperLastExpired = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resale_sweeper_last_expired",
		Help: "Number of orders expired during the last sweeper pass.",
	})
)

// OrderExpirer отменяет один заказ по таймауту; false, если заказ уже разрешён или занят.
type OrderExpirer interface {
	ExpireOrder(ctx context.Context, orderID string, before time.Time) (bool, error)
}

// ListingExpirer переводит просроченные листинги в Expired.
type ListingExpirer interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// Result: итог одного прохода.
type Result struct {
	Candidates      int
	Expired         int
	Skipped         int
	Failed          int
	ListingsExpired int
	// NotLeader выставляется, когда лидерскую блокировку держит другая реплика.
	NotLeader bool
}

// Options задаёт параметры воркера.
type Options struct {
	Logger    *log.Entry
	Interval  time.Duration
	Deadline  time.Duration
	BatchSize int
	Clock     clock.Clock
	Locker    lock.Locker
	Listings  ListingExpirer
}

// Option настраивает Worker.
type Option func(*Options)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между проходами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithDeadline задаёт срок оплаты, после которого pending-заказ отменяется.
func WithDeadline(deadline time.Duration) Option {
	return func(opts *Options) {
		opts.Deadline = deadline
	}
}

// WithBatchSize задаёт размер страницы кандидатов.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// WithClock подменяет источник времени.
func WithClock(clk clock.Clock) Option {
	return func(opts *Options) {
		opts.Clock = clk
	}
}

// WithLocker включает лидерскую блокировку: проход выполняет только её владелец.
func WithLocker(locker lock.Locker) Option {
	return func(opts *Options) {
		opts.Locker = locker
	}
}

// WithListingExpiry включает истечение листингов в том же проходе.
func WithListingExpiry(listings ListingExpirer) Option {
	return func(opts *Options) {
		opts.Listings = listings
	}
}

// Worker: фоновый процесс сверки таймаутов.
type Worker struct {
	orders    domain.OrderRepository
	expirer   OrderExpirer
	listings  ListingExpirer
	locker    lock.Locker
	clock     clock.Clock
	logger    *log.Entry
	interval  time.Duration
	deadline  time.Duration
	batchSize int
}

// NewWorker создаёт воркер. orders отдаёт кандидатов, expirer отменяет каждого в своей транзакции.
func NewWorker(orders domain.OrderRepository, expirer OrderExpirer, options ...Option) *Worker {
	opts := Options{
		Interval:  defaultInterval,
		Deadline:  defaultDeadline,
		BatchSize: defaultBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "timeout-sweeper")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Deadline <= 0 {
		opts.Deadline = defaultDeadline
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}

	return &Worker{
		orders:    orders,
		expirer:   expirer,
		listings:  opts.Listings,
		locker:    opts.Locker,
		clock:     opts.Clock,
		logger:    logger,
		interval:  opts.Interval,
		deadline:  opts.Deadline,
		batchSize: opts.BatchSize,
	}
}

// Run выполняет проходы каждые interval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.orders == nil || w.expirer == nil {
		w.logger.Warn("timeout sweeper is disabled: dependencies are nil")
		return
	}

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	res, err := w.SweepOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		sweeperRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("timeout sweep failed")
		return
	}
	if res.NotLeader {
		sweeperRunsTotal.WithLabelValues("skipped").Inc()
		return
	}

	sweeperRunsTotal.WithLabelValues("ok").Inc()
	sweeperLastExpired.Set(float64(res.Expired))
	if res.Expired > 0 || res.Failed > 0 || res.ListingsExpired > 0 {
		w.logger.WithFields(log.Fields{
			"candidates":       res.Candidates,
			"expired":          res.Expired,
			"skipped":          res.Skipped,
			"failed":           res.Failed,
			"listings_expired": res.ListingsExpired,
		}).Info("timeout sweep completed")
	}
}

// SweepOnce выполняет один проход по всем просроченным заказам, batchSize за запрос.
// Ошибка отдельного заказа не прерывает проход: она учитывается в Result.Failed,
// заказ будет повторён в следующем проходе.
func (w *Worker) SweepOnce(ctx context.Context) (Result, error) {
	var res Result

	if w.locker != nil {
		lease, ok, err := w.locker.Acquire(ctx, leaderLockKey, w.interval)
		if err != nil {
			return res, err
		}
		if !ok {
			w.logger.Debug("sweeper lock is held by another replica")
			res.NotLeader = true
			return res, nil
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				w.logger.WithError(err).Debug("release sweeper lock")
			}
		}()
	}

	now := w.clock.Now()
	before := now.Add(-w.deadline)

	// Кандидаты выбираются страницами по (created_at, id): заказ, который не удалось отменить,
	// остаётся позади курсора и не мешает следующим.
	var cursor domain.OrderRef
	for {
		refs, err := w.orders.ListExpiredPending(ctx, before, cursor, w.batchSize)
		if err != nil {
			return res, err
		}
		res.Candidates += len(refs)

		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			w.expire(ctx, ref.ID, before, &res)
		}

		if len(refs) < w.batchSize {
			break
		}
		cursor = refs[len(refs)-1]
	}

	if w.listings != nil {
		n, err := w.listings.ExpireDue(ctx, now, w.batchSize)
		res.ListingsExpired = n
		sweeperListingsExpiredTotal.Add(float64(n))
		if err != nil {
			w.logger.WithError(err).Warn("failed to expire listings")
		}
	}

	return res, nil
}

func (w *Worker) expire(ctx context.Context, orderID string, before time.Time, res *Result) {
	expired, err := w.expirer.ExpireOrder(ctx, orderID, before)
	switch {
	case err != nil:
		res.Failed++
		sweeperOrderFailuresTotal.Inc()
		w.logger.WithError(err).WithField("order_id", orderID).Warn("failed to expire order")
	case expired:
		res.Expired++
		sweeperOrdersExpiredTotal.Inc()
	default:
		res.Skipped++
	}
}

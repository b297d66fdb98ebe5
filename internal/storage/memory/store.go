package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

// state: полный снимок данных; транзакция работает с копией и подменяет оригинал при коммите.
type state struct {
	listings       map[string]domain.Listing
	listingItems   map[string][]string
	items          map[string]domain.InventoryItem
	sellers        map[string]domain.SellerProfile
	flags          map[string][]domain.RiskFlag
	orders         map[string]domain.Order
	payments       map[string]domain.Payment
	paymentByOrder map[string]string
	outbox         map[string]outboxRecord
	outboxSeq      int64
	timeline       []domain.TimelineEvent
}

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	seq        int64
	createdAt  time.Time
	updatedAt  time.Time
}

func newState() *state {
	return &state{
		listings:       make(map[string]domain.Listing),
		listingItems:   make(map[string][]string),
		items:          make(map[string]domain.InventoryItem),
		sellers:        make(map[string]domain.SellerProfile),
		flags:          make(map[string][]domain.RiskFlag),
		orders:         make(map[string]domain.Order),
		payments:       make(map[string]domain.Payment),
		paymentByOrder: make(map[string]string),
		outbox:         make(map[string]outboxRecord),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.listingItems {
		c.listingItems[k] = append([]string(nil), v...)
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.sellers {
		c.sellers[k] = v
	}
	for k, v := range s.flags {
		c.flags[k] = append([]domain.RiskFlag(nil), v...)
	}
	for k, v := range s.orders {
		v.Items = append([]domain.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.paymentByOrder {
		c.paymentByOrder[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	c.outboxSeq = s.outboxSeq
	c.timeline = append([]domain.TimelineEvent(nil), s.timeline...)
	return c
}

// Store: in-memory хранилище для локальной разработки и тестов.
// Единица работы держит мьютекс хранилища целиком, поэтому транзакции строго сериализованы.
type Store struct {
	mu   sync.Mutex
	data *state
}

type txKey struct {
	store *Store
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{data: newState()}
}

// WithinTx выполняет fn над копией данных; при ошибке копия отбрасывается.
// Вложенный вызов присоединяется к внешней транзакции.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txState(ctx) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{store: s}, work)); err != nil {
		return err
	}
	s.data = work
	return nil
}

// Repositories возвращает набор репозиториев поверх хранилища.
func (s *Store) Repositories() domain.Repositories {
	return domain.Repositories{
		Tx:        s,
		Inventory: &inventoryRepository{store: s},
		Listings:  &listingRepository{store: s},
		Sellers:   &sellerRepository{store: s},
		RiskFlags: &riskFlagRepository{store: s},
		Orders:    &orderRepository{store: s},
		Payments:  &paymentRepository{store: s},
		Outbox:    &outboxRepository{store: s},
		Timeline:  &timelineRepository{store: s},
	}
}

func (s *Store) txState(ctx context.Context) *state {
	st, _ := ctx.Value(txKey{store: s}).(*state)
	return st
}

// read выполняет fn над данными текущей транзакции или над закоммиченным снимком.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if st := s.txState(ctx); st != nil {
		return fn(st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// write выполняет fn в текущей транзакции или в собственной auto-commit транзакции.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	return s.WithinTx(ctx, func(txCtx context.Context) error {
		return fn(s.txState(txCtx))
	})
}

// locked выполняет fn только внутри транзакции: блокирующее чтение вне её не имеет смысла.
func (s *Store) locked(ctx context.Context, fn func(st *state) error) error {
	st := s.txState(ctx)
	if st == nil {
		return domain.ErrTxRequired
	}
	return fn(st)
}

var _ domain.TxManager = (*Store)(nil)

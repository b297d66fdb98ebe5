package domain

import (
	"context"
	"time"
)

// TxManager задаёт единицу работы. fn выполняется в одной транзакции, контекст несёт её дальше в репозитории.
// Любая ошибка fn откатывает все изменения.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InventoryRepository: доступ к билетам. Мутации только внутри транзакции.
type InventoryRepository interface {
	// LockItems блокирует строки билетов (FOR UPDATE) строго в порядке возрастания ID.
	LockItems(ctx context.Context, ids []string) ([]LockedItem, error)
	// SetStatus переводит билеты в status.
	SetStatus(ctx context.Context, ids []string, status ItemStatus, at time.Time) error
}

// ListingRepository: доступ к листингам продавцов и их билетам.
type ListingRepository interface {
	Create(ctx context.Context, listing Listing) error
	Get(ctx context.Context, id string) (Listing, error)
	GetForUpdate(ctx context.Context, id string) (Listing, error)
	UpdateStatus(ctx context.Context, id string, status ListingStatus, at time.Time) error
	// UpdateItemsStatus переводит билеты листинга из любого статуса from в to и возвращает число изменённых.
	UpdateItemsStatus(ctx context.Context, listingID string, from []ItemStatus, to ItemStatus, at time.Time) (int, error)
	// ItemsSettled сообщает, что все билеты листинга проданы и ни один не удерживается pending-заказом.
	ItemsSettled(ctx context.Context, listingID string) (bool, error)
	// ListExpired возвращает активные/pending листинги с expires_at <= before.
	ListExpired(ctx context.Context, before time.Time, limit int) ([]string, error)
	// ListPendingUnflagged возвращает pending-листинги без единой пометки риска.
	ListPendingUnflagged(ctx context.Context, limit int) ([]string, error)
	// ListPendingInconsistent возвращает pending-листинги, у которых есть билеты не в статусе pending.
	ListPendingInconsistent(ctx context.Context, limit int) ([]string, error)
}

// SellerRepository отдаёт профиль продавца, наполняемый внешним сервисом аутентификации.
type SellerRepository interface {
	GetProfile(ctx context.Context, sellerID string) (SellerProfile, error)
	Upsert(ctx context.Context, profile SellerProfile) error
}

// RiskFlagRepository хранит append-only пометки риска.
type RiskFlagRepository interface {
	ListByListing(ctx context.Context, listingID string) ([]RiskFlag, error)
	// Insert добавляет пометку; false, если пометка этого типа у листинга уже есть.
	Insert(ctx context.Context, flag RiskFlag) (bool, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе с позициями.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// GetForUpdate читает заказ под блокировкой строки.
	GetForUpdate(ctx context.Context, id string) (Order, error)
	// ListExpiredPending возвращает до limit кандидатов для таймаута (pending-заказ, pending-платёж,
	// created_at < before) строго после after в порядке (created_at, id).
	ListExpiredPending(ctx context.Context, before time.Time, after OrderRef, limit int) ([]OrderRef, error)
	// ClaimExpired блокирует заказ, если он всё ещё удовлетворяет условию таймаута (created_at < before); иначе ok=false.
	ClaimExpired(ctx context.Context, id string, before time.Time) (Order, bool, error)
	UpdateStatus(ctx context.Context, id string, status OrderStatus, at time.Time) error
}

// PaymentRepository хранит платежи заказов (1:1).
type PaymentRepository interface {
	Create(ctx context.Context, payment Payment) error
	GetByOrder(ctx context.Context, orderID string) (Payment, error)
	GetByOrderForUpdate(ctx context.Context, orderID string) (Payment, error)
	UpdateStatus(ctx context.Context, id string, status PaymentStatus, at time.Time) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// Repositories объединяет репозитории поверх одного хранилища.
type Repositories struct {
	Tx        TxManager
	Inventory InventoryRepository
	Listings  ListingRepository
	Sellers   SellerRepository
	RiskFlags RiskFlagRepository
	Orders    OrderRepository
	Payments  PaymentRepository
	Outbox    OutboxRepository
	Timeline  TimelineRepository
}

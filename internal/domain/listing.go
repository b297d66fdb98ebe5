package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus описывает жизненный цикл листинга продавца.
type ListingStatus string

const (
	// ListingStatusPending: листинг на модерации, билеты в продажу не выставлены.
	ListingStatusPending ListingStatus = "pending"
	// ListingStatusActive: листинг опубликован, билеты можно покупать.
	ListingStatusActive ListingStatus = "active"
	// ListingStatusSold: все билеты проданы и оплачены.
	ListingStatusSold ListingStatus = "sold"
	// ListingStatusExpired: истёк срок действия листинга.
	ListingStatusExpired ListingStatus = "expired"
	// ListingStatusCancelled: продавец снял листинг.
	ListingStatusCancelled ListingStatus = "cancelled"
	// ListingStatusRejected: модерация отклонила листинг.
	ListingStatusRejected ListingStatus = "rejected"
)

// ItemStatus описывает состояние отдельного билета внутри листинга.
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusActive    ItemStatus = "active"
	ItemStatusSold      ItemStatus = "sold"
	ItemStatusExpired   ItemStatus = "expired"
	ItemStatusCancelled ItemStatus = "cancelled"
)

// InventoryItem: один билет, выставленный в рамках одного листинга.
type InventoryItem struct {
	ID          string
	ListingID   string
	TicketID    string
	AskingPrice decimal.Decimal
	FaceValue   decimal.Decimal
	Status      ItemStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LockedItem: билет, прочитанный под блокировкой строки вместе со статусом листинга.
type LockedItem struct {
	Item          InventoryItem
	ListingStatus ListingStatus
}

// Listing: предложение продавца из одного или нескольких билетов.
type Listing struct {
	ID        string
	SellerID  string
	Status    ListingStatus
	ExpiresAt time.Time
	Items     []InventoryItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// listingTransitions перечисляет разрешённые переходы статусов листинга.
var listingTransitions = map[ListingStatus][]ListingStatus{
	ListingStatusPending: {ListingStatusActive, ListingStatusRejected, ListingStatusCancelled, ListingStatusExpired},
	ListingStatusActive:  {ListingStatusSold, ListingStatusCancelled, ListingStatusExpired},
}

// CanTransitionTo проверяет, допустим ли переход листинга в статус next.
func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	for _, allowed := range listingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal сообщает, что из статуса нет дальнейших переходов.
func (s ListingStatus) Terminal() bool {
	return len(listingTransitions[s]) == 0
}

// ItemStatusFor возвращает статус, который должен иметь непроданный билет листинга в статусе s.
func (s ListingStatus) ItemStatusFor() ItemStatus {
	switch s {
	case ListingStatusPending:
		return ItemStatusPending
	case ListingStatusActive, ListingStatusSold:
		return ItemStatusActive
	case ListingStatusExpired:
		return ItemStatusExpired
	default:
		return ItemStatusCancelled
	}
}

// ValidateInvariants проверяет согласованность статусов листинга и его билетов.
func (l *Listing) ValidateInvariants() []error {
	var errs []error

	if l.SellerID == "" {
		errs = append(errs, ErrSellerRequired)
	}
	if len(l.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	for _, item := range l.Items {
		if item.TicketID == "" {
			errs = append(errs, ErrTicketRequired)
		}
		if !item.AskingPrice.IsPositive() || !item.FaceValue.IsPositive() {
			errs = append(errs, ErrPriceInvalid)
		}
		if !ItemStatusAllowed(l.Status, item.Status) {
			errs = append(errs, ErrInvalidState)
		}
	}

	return errs
}

// ItemStatusAllowed проверяет инвариант: проданный билет только в активном/проданном листинге,
// а билет листинга на модерации может быть только pending. В завершённом листинге (expired,
// cancelled) остаются проданными только билеты, оплаченные до его завершения: продажа не откатывается.
func ItemStatusAllowed(listing ListingStatus, item ItemStatus) bool {
	switch listing {
	case ListingStatusPending:
		return item == ItemStatusPending
	case ListingStatusActive, ListingStatusSold:
		return item != ItemStatusPending
	default:
		return item != ItemStatusActive && item != ItemStatusPending
	}
}

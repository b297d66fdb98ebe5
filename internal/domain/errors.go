package domain

import "errors"

var (
	// ErrNotFound: базовая ошибка отсутствующей сущности; конкретные ошибки ниже её оборачивают.
	ErrNotFound = errors.New("not found")
	// ErrInventoryConflict: билет уже зарезервирован или недоступен для продажи.
	ErrInventoryConflict = errors.New("inventory already reserved or unavailable")
	// ErrInvalidState: операция запрошена для заказа/платежа/листинга в неподходящем статусе.
	ErrInvalidState = errors.New("invalid state for operation")
	// ErrStorage: сбой транзакции или подключения; вызывающая сторона может повторить попытку.
	ErrStorage = errors.New("storage failure")
	// ErrTxRequired: операция должна выполняться внутри единицы работы.
	ErrTxRequired = errors.New("operation requires an active transaction")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = wrapNotFound("order not found")
	// ErrPaymentNotFound возвращается, если платёж заказа не найден.
	ErrPaymentNotFound = wrapNotFound("payment not found")
	// ErrListingNotFound возвращается, если листинг не найден.
	ErrListingNotFound = wrapNotFound("listing not found")
	// ErrItemNotFound возвращается, если хотя бы один билет из запроса не существует.
	ErrItemNotFound = wrapNotFound("inventory item not found")
	// ErrSellerNotFound возвращается, если профиль продавца отсутствует.
	ErrSellerNotFound = wrapNotFound("seller not found")

	// Ошибка отсутствующего идентификатора покупателя.
	ErrBuyerRequired = errors.New("buyer_id is required")
	// Ошибка отсутствующего идентификатора продавца.
	ErrSellerRequired = errors.New("seller_id is required")
	// Ошибка отсутствия хотя бы одного билета в заказе или листинге.
	ErrItemsRequired = errors.New("at least one inventory item is required")
	// Ошибка неположительной цены билета.
	ErrPriceInvalid = errors.New("asking price and face value must be positive")
	// Ошибка отсутствующего идентификатора билета в листинге.
	ErrTicketRequired = errors.New("ticket_id is required")
	// Ошибка срока действия листинга в прошлом.
	ErrExpiryInPast = errors.New("listing expiry must be in the future")
)

type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Unwrap() error { return ErrNotFound }

func wrapNotFound(msg string) error {
	return &notFoundError{msg: msg}
}

// IsConflict проверяет, что ошибка означает проигранную гонку за билет.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInventoryConflict)
}

// IsInvalidState проверяет, что сущность уже находится в неподходящем статусе.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsNotFound проверяет, что ссылка указывает на несуществующую сущность.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable сообщает, имеет ли смысл повторить операцию целиком.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}

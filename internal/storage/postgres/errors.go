package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// classify добавляет domain.ErrStorage к сбоям, после которых транзакцию можно повторить.
// Доменные ошибки и отмена контекста возвращаются как есть.
func classify(err error) error {
	if err == nil || errors.Is(err, domain.ErrStorage) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if isRetryable(err) {
		return errors.Join(domain.ErrStorage, err)
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return true
		}
		// Класс 08: ошибки подключения.
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateForeignKeyViolation
	}
	return false
}

func wrapQuery(op string, err error) error {
	return classify(fmt.Errorf("%s: %w", op, err))
}

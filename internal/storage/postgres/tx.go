package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type txKey struct{}

// querier: общее подмножество *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithinTx открывает READ COMMITTED транзакцию и передаёт её через ctx.
// Вложенный вызов присоединяется к уже открытой транзакции.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return classify(err)
	}
	if err = tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// conn возвращает транзакцию из ctx или пул для auto-commit запросов.
func (s *Store) conn(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// lockedConn требует открытую транзакцию: FOR UPDATE вне неё бессмысленен.
func (s *Store) lockedConn(ctx context.Context) (querier, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return nil, domain.ErrTxRequired
	}
	return tx, nil
}

// withTimeout ограничивает запрос вне транзакции; внутри транзакции срок задаёт вызывающая сторона.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if txFromContext(ctx) != nil {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, opTimeout)
}

var _ domain.TxManager = (*Store)(nil)

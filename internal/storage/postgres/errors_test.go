package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: sqlStateSerializationFailure}, retryable: true},
		{name: "deadlock", err: fmt.Errorf("lock items: %w", &pgconn.PgError{Code: sqlStateDeadlockDetected}), retryable: true},
		{name: "connection exception", err: &pgconn.PgError{Code: "08006"}, retryable: true},
		{name: "bad conn", err: driver.ErrBadConn, retryable: true},
		{name: "unique violation", err: &pgconn.PgError{Code: sqlStateUniqueViolation}, retryable: false},
		{name: "domain conflict", err: domain.ErrInventoryConflict, retryable: false},
		{name: "canceled", err: context.Canceled, retryable: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := classify(tc.err)
			if domain.IsRetryable(got) != tc.retryable {
				t.Fatalf("retryable=%v, want %v (err=%v)", domain.IsRetryable(got), tc.retryable, got)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("classified error must keep original cause")
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if classify(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestRepositories_RequireTxForLocks(t *testing.T) {
	repos := (&Store{}).Repositories()
	ctx := context.Background()

	if _, err := repos.Inventory.LockItems(ctx, []string{"item-1"}); !errors.Is(err, domain.ErrTxRequired) {
		t.Fatalf("expected ErrTxRequired, got %v", err)
	}
	if _, err := repos.Orders.GetForUpdate(ctx, "order-1"); !errors.Is(err, domain.ErrTxRequired) {
		t.Fatalf("expected ErrTxRequired, got %v", err)
	}
	if _, _, err := repos.Orders.ClaimExpired(ctx, "order-1", time.Now()); !errors.Is(err, domain.ErrTxRequired) {
		t.Fatalf("expected ErrTxRequired, got %v", err)
	}
}

package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		conflict  bool
		invalid   bool
		notFound  bool
		retryable bool
	}{
		{name: "inventory conflict", err: ErrInventoryConflict, conflict: true},
		{name: "wrapped conflict", err: fmt.Errorf("reserve: %w", ErrInventoryConflict), conflict: true},
		{name: "invalid state", err: ErrInvalidState, invalid: true},
		{name: "joined invalid state", err: errors.Join(ErrInvalidState, errors.New("order already paid")), invalid: true},
		{name: "order not found", err: ErrOrderNotFound, notFound: true},
		{name: "listing not found", err: ErrListingNotFound, notFound: true},
		{name: "item not found", err: fmt.Errorf("lock items: %w", ErrItemNotFound), notFound: true},
		{name: "storage", err: fmt.Errorf("commit: %w", ErrStorage), retryable: true},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConflict(tt.err); got != tt.conflict {
				t.Errorf("IsConflict() = %v, want %v", got, tt.conflict)
			}
			if got := IsInvalidState(tt.err); got != tt.invalid {
				t.Errorf("IsInvalidState() = %v, want %v", got, tt.invalid)
			}
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestNotFoundErrorsAreDistinct(t *testing.T) {
	if errors.Is(ErrOrderNotFound, ErrListingNotFound) {
		t.Fatal("order and listing not-found errors must differ")
	}
	if ErrItemNotFound.Error() != "inventory item not found" {
		t.Fatalf("unexpected message: %q", ErrItemNotFound.Error())
	}
}

package memory

import (
	"context"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type riskFlagRepository struct {
	store *Store
}

func (r *riskFlagRepository) ListByListing(ctx context.Context, listingID string) ([]domain.RiskFlag, error) {
	var flags []domain.RiskFlag
	err := r.store.read(ctx, func(st *state) error {
		flags = append([]domain.RiskFlag{}, st.flags[listingID]...)
		return nil
	})
	return flags, err
}

// Insert повторяет семантику UNIQUE(listing_id, flag_type) ... ON CONFLICT DO NOTHING.
func (r *riskFlagRepository) Insert(ctx context.Context, flag domain.RiskFlag) (bool, error) {
	inserted := false
	err := r.store.write(ctx, func(st *state) error {
		if _, ok := st.listings[flag.ListingID]; !ok {
			return domain.ErrListingNotFound
		}
		for _, existing := range st.flags[flag.ListingID] {
			if existing.Type == flag.Type {
				return nil
			}
		}
		st.flags[flag.ListingID] = append(st.flags[flag.ListingID], flag)
		inserted = true
		return nil
	})
	return inserted, err
}

var _ domain.RiskFlagRepository = (*riskFlagRepository)(nil)

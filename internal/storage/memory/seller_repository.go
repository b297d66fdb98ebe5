package memory

import (
	"context"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type sellerRepository struct {
	store *Store
}

func (r *sellerRepository) GetProfile(ctx context.Context, sellerID string) (domain.SellerProfile, error) {
	var profile domain.SellerProfile
	err := r.store.read(ctx, func(st *state) error {
		p, ok := st.sellers[sellerID]
		if !ok {
			return domain.ErrSellerNotFound
		}
		profile = p
		return nil
	})
	return profile, err
}

func (r *sellerRepository) Upsert(ctx context.Context, profile domain.SellerProfile) error {
	if profile.SellerID == "" {
		return domain.ErrSellerRequired
	}
	return r.store.write(ctx, func(st *state) error {
		st.sellers[profile.SellerID] = profile
		return nil
	})
}

var _ domain.SellerRepository = (*sellerRepository)(nil)

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type sellerRepository struct {
	store *Store
}

func (r *sellerRepository) GetProfile(ctx context.Context, sellerID string) (domain.SellerProfile, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	profile := domain.SellerProfile{SellerID: sellerID}
	err := r.store.conn(ctx).QueryRowContext(ctx, `
		SELECT verification_tier, blacklisted FROM sellers WHERE seller_id = $1
	`, sellerID).Scan(&profile.VerificationTier, &profile.Blacklisted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SellerProfile{}, domain.ErrSellerNotFound
		}
		return domain.SellerProfile{}, wrapQuery("select seller profile", err)
	}
	return profile, nil
}

func (r *sellerRepository) Upsert(ctx context.Context, profile domain.SellerProfile) error {
	if profile.SellerID == "" {
		return domain.ErrSellerRequired
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO sellers (seller_id, verification_tier, blacklisted, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (seller_id) DO UPDATE
		SET verification_tier = EXCLUDED.verification_tier,
		    blacklisted = EXCLUDED.blacklisted,
		    updated_at = EXCLUDED.updated_at
	`, profile.SellerID, profile.VerificationTier, profile.Blacklisted, time.Now().UTC()); err != nil {
		return wrapQuery("upsert seller profile", err)
	}
	return nil
}

var _ domain.SellerRepository = (*sellerRepository)(nil)

package postgres

import (
	"context"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type riskFlagRepository struct {
	store *Store
}

func (r *riskFlagRepository) ListByListing(ctx context.Context, listingID string) ([]domain.RiskFlag, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.store.conn(ctx).QueryContext(ctx, `
		SELECT id, listing_id, flag_type, reason, created_at
		FROM risk_flags
		WHERE listing_id = $1
		ORDER BY created_at, id
	`, listingID)
	if err != nil {
		return nil, wrapQuery("list risk flags", err)
	}
	defer rows.Close()

	flags := make([]domain.RiskFlag, 0)
	for rows.Next() {
		var (
			flag     domain.RiskFlag
			flagType string
		)
		if err := rows.Scan(&flag.ID, &flag.ListingID, &flagType, &flag.Reason, &flag.CreatedAt); err != nil {
			return nil, wrapQuery("scan risk flag", err)
		}
		flag.Type = domain.RiskFlagType(flagType)
		flags = append(flags, flag)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQuery("iterate risk flags", err)
	}
	return flags, nil
}

// Insert полагается на UNIQUE (listing_id, flag_type): повторная пометка молча пропускается.
func (r *riskFlagRepository) Insert(ctx context.Context, flag domain.RiskFlag) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO risk_flags (id, listing_id, flag_type, reason, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (listing_id, flag_type) DO NOTHING
	`, flag.ID, flag.ListingID, string(flag.Type), flag.Reason, flag.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, domain.ErrListingNotFound
		}
		return false, wrapQuery("insert risk flag", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapQuery("rows affected for risk flag", err)
	}
	return affected == 1, nil
}

var _ domain.RiskFlagRepository = (*riskFlagRepository)(nil)

// Package risk оценивает листинги эвристическими правилами и сохраняет пометки для модерации.
package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

// Rules: пороги эвристик.
type Rules struct {
	// NewSellerMinTier: минимальный уровень верификации, ниже которого продавец считается новым.
	NewSellerMinTier int
	// HighPriceRatio: asking/face, выше которого цена считается завышенной.
	HighPriceRatio decimal.Decimal
	// LowPriceRatio: asking/face, ниже которого цена считается подозрительно низкой.
	LowPriceRatio decimal.Decimal
	// MaxQuantity: число билетов в листинге, начиная с которого листинг помечается; 0 отключает правило.
	MaxQuantity int
}

// DefaultRules возвращает пороги по умолчанию.
func DefaultRules() Rules {
	return Rules{
		NewSellerMinTier: 2,
		HighPriceRatio:   decimal.RequireFromString("1.20"),
		LowPriceRatio:    decimal.RequireFromString("0.50"),
		MaxQuantity:      10,
	}
}

// Evaluate применяет правила к листингу и профилю продавца. Функция чистая:
// на каждый тип правила приходится не больше одной пометки. ID пометкам не присваивается.
func Evaluate(listing domain.Listing, seller domain.SellerProfile, rules Rules, now time.Time) []domain.RiskFlag {
	flags := make([]domain.RiskFlag, 0)
	add := func(flagType domain.RiskFlagType, reason string) {
		flags = append(flags, domain.RiskFlag{
			ListingID: listing.ID,
			Type:      flagType,
			Reason:    reason,
			CreatedAt: now,
		})
	}

	if seller.Blacklisted {
		add(domain.RiskFlagBlacklistedSeller, fmt.Sprintf("seller %s is blacklisted", listing.SellerID))
	}
	if seller.VerificationTier < rules.NewSellerMinTier {
		add(domain.RiskFlagNewSeller, fmt.Sprintf("seller verification tier %d is below %d",
			seller.VerificationTier, rules.NewSellerMinTier))
	}

	if item, ok := firstItem(listing.Items, func(asking, limit decimal.Decimal) bool {
		return asking.GreaterThan(limit)
	}, rules.HighPriceRatio); ok {
		add(domain.RiskFlagHighPrice, fmt.Sprintf("item %s asking price %s exceeds %s x face value %s",
			item.ID, item.AskingPrice.StringFixed(2), rules.HighPriceRatio.String(), item.FaceValue.StringFixed(2)))
	}

	if item, ok := firstItem(listing.Items, func(asking, limit decimal.Decimal) bool {
		return asking.LessThan(limit)
	}, rules.LowPriceRatio); ok {
		add(domain.RiskFlagLowPrice, fmt.Sprintf("item %s asking price %s is below %s x face value %s",
			item.ID, item.AskingPrice.StringFixed(2), rules.LowPriceRatio.String(), item.FaceValue.StringFixed(2)))
	}

	if rules.MaxQuantity > 0 && len(listing.Items) > rules.MaxQuantity {
		add(domain.RiskFlagHighQuantity, fmt.Sprintf("listing has %d items, limit is %d",
			len(listing.Items), rules.MaxQuantity))
	}

	return flags
}

// firstItem возвращает первый билет, для которого match(asking, ratio*face) истинно.
func firstItem(items []domain.InventoryItem, match func(asking, limit decimal.Decimal) bool, ratio decimal.Decimal) (domain.InventoryItem, bool) {
	for _, item := range items {
		if match(item.AskingPrice, item.FaceValue.Mul(ratio)) {
			return item, true
		}
	}
	return domain.InventoryItem{}, false
}

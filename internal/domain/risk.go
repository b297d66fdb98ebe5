package domain

import "time"

// RiskFlagType: тип эвристической пометки листинга.
type RiskFlagType string

const (
	RiskFlagHighPrice         RiskFlagType = "high_price"
	RiskFlagLowPrice          RiskFlagType = "low_price"
	RiskFlagNewSeller         RiskFlagType = "new_seller"
	RiskFlagHighQuantity      RiskFlagType = "high_quantity"
	RiskFlagBlacklistedSeller RiskFlagType = "blacklisted_seller"
)

// Valid проверяет, что тип относится к поддерживаемым значениям.
func (t RiskFlagType) Valid() bool {
	switch t {
	case RiskFlagHighPrice, RiskFlagLowPrice, RiskFlagNewSeller, RiskFlagHighQuantity, RiskFlagBlacklistedSeller:
		return true
	default:
		return false
	}
}

// RiskFlag: неизменяемая пометка листинга для модерации.
type RiskFlag struct {
	ID        string
	ListingID string
	Type      RiskFlagType
	Reason    string
	CreatedAt time.Time
}

// SellerProfile: контекст продавца, который нужен правилам риска.
type SellerProfile struct {
	SellerID         string
	VerificationTier int
	Blacklisted      bool
}

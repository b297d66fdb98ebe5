package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

func listingWithPrices(pairs ...[2]string) domain.Listing {
	listing := domain.Listing{ID: "listing-1", SellerID: "seller-1"}
	for i, p := range pairs {
		listing.Items = append(listing.Items, domain.InventoryItem{
			ID:          string(rune('a' + i)),
			AskingPrice: decimal.RequireFromString(p[0]),
			FaceValue:   decimal.RequireFromString(p[1]),
		})
	}
	return listing
}

func flagTypes(flags []domain.RiskFlag) map[domain.RiskFlagType]string {
	out := make(map[domain.RiskFlagType]string, len(flags))
	for _, f := range flags {
		out[f.Type] = f.Reason
	}
	return out
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	verified := domain.SellerProfile{SellerID: "seller-1", VerificationTier: 2}
	cases := []struct {
		name    string
		listing domain.Listing
		seller  domain.SellerProfile
		want    []domain.RiskFlagType
	}{
		{name: "clean", listing: listingWithPrices([2]string{"100", "100"}), seller: verified},
		{name: "ratio boundary is not high", listing: listingWithPrices([2]string{"120.00", "100.00"}), seller: verified},
		{name: "ratio boundary is not low", listing: listingWithPrices([2]string{"50.00", "100.00"}), seller: verified},
		{
			name:    "high price",
			listing: listingWithPrices([2]string{"100", "100"}, [2]string{"120.01", "100"}),
			seller:  verified,
			want:    []domain.RiskFlagType{domain.RiskFlagHighPrice},
		},
		{
			name:    "low price",
			listing: listingWithPrices([2]string{"49.99", "100"}),
			seller:  verified,
			want:    []domain.RiskFlagType{domain.RiskFlagLowPrice},
		},
		{
			name:    "new seller",
			listing: listingWithPrices([2]string{"100", "100"}),
			seller:  domain.SellerProfile{VerificationTier: 1},
			want:    []domain.RiskFlagType{domain.RiskFlagNewSeller},
		},
		{
			name:    "blacklisted new seller with both price anomalies",
			listing: listingWithPrices([2]string{"300", "100"}, [2]string{"10", "100"}, [2]string{"400", "100"}),
			seller:  domain.SellerProfile{VerificationTier: 0, Blacklisted: true},
			want: []domain.RiskFlagType{
				domain.RiskFlagBlacklistedSeller, domain.RiskFlagNewSeller,
				domain.RiskFlagHighPrice, domain.RiskFlagLowPrice,
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			flags := Evaluate(tc.listing, tc.seller, DefaultRules(), time.Unix(0, 0))
			got := flagTypes(flags)
			if len(flags) != len(tc.want) || len(got) != len(flags) {
				t.Fatalf("expected %v, got %+v", tc.want, flags)
			}
			for _, w := range tc.want {
				if _, ok := got[w]; !ok {
					t.Fatalf("expected flag %s, got %+v", w, flags)
				}
			}
		})
	}
}

func TestEvaluate_ReasonsCiteValues(t *testing.T) {
	flags := Evaluate(
		listingWithPrices([2]string{"130", "100"}),
		domain.SellerProfile{VerificationTier: 1},
		DefaultRules(),
		time.Unix(0, 0),
	)
	got := flagTypes(flags)

	if reason := got[domain.RiskFlagHighPrice]; reason != "item a asking price 130.00 exceeds 1.2 x face value 100.00" {
		t.Fatalf("unexpected high price reason %q", reason)
	}
	if reason := got[domain.RiskFlagNewSeller]; reason != "seller verification tier 1 is below 2" {
		t.Fatalf("unexpected new seller reason %q", reason)
	}
}

func TestEvaluate_HighQuantity(t *testing.T) {
	pairs := make([][2]string, 11)
	for i := range pairs {
		pairs[i] = [2]string{"100", "100"}
	}
	rules := DefaultRules()

	flags := Evaluate(listingWithPrices(pairs...), domain.SellerProfile{VerificationTier: 3}, rules, time.Now())
	if len(flags) != 1 || flags[0].Type != domain.RiskFlagHighQuantity {
		t.Fatalf("expected high quantity flag, got %+v", flags)
	}

	rules.MaxQuantity = 0
	if flags := Evaluate(listingWithPrices(pairs...), domain.SellerProfile{VerificationTier: 3}, rules, time.Now()); len(flags) != 0 {
		t.Fatalf("disabled rule must not flag, got %+v", flags)
	}
}

package purchases

import (
	"testing"

	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
	"github.com/humanpalette/palette-backend/pkg/errors"
)

var pricingCfg = config.PricingConfig{
	PlatformFeeRate:      0.075,
	CommercialMultiplier: 1.25,
}

func int64Ptr(v int64) *int64 { return &v }

func TestQuotePrice(t *testing.T) {
	tests := []struct {
		name    string
		artwork models.Artwork
		useType enums.UseType
		want    PriceQuote
	}{
		{
			name:    "personal use",
			artwork: models.Artwork{PriceCents: 25000},
			useType: enums.UseTypePersonal,
			want: PriceQuote{
				BasePriceCents:    25000,
				TotalCents:        25000,
				PlatformFeeCents:  1875,
				ArtistPayoutCents: 23125,
			},
		},
		{
			name:    "display use",
			artwork: models.Artwork{PriceCents: 9999},
			useType: enums.UseTypeDisplay,
			want: PriceQuote{
				BasePriceCents:    9999,
				TotalCents:        9999,
				PlatformFeeCents:  749,
				ArtistPayoutCents: 9250,
			},
		},
		{
			name:    "commercial with default multiplier",
			artwork: models.Artwork{PriceCents: 25000, AllowsCommercial: true},
			useType: enums.UseTypeCommercial,
			want: PriceQuote{
				BasePriceCents:        25000,
				CommercialUpliftCents: 6250,
				TotalCents:            31250,
				PlatformFeeCents:      2343,
				ArtistPayoutCents:     28907,
			},
		},
		{
			name: "commercial with explicit price",
			artwork: models.Artwork{
				PriceCents:           25000,
				CommercialPriceCents: int64Ptr(40000),
				AllowsCommercial:     true,
			},
			useType: enums.UseTypeCommercial,
			want: PriceQuote{
				BasePriceCents:        25000,
				CommercialUpliftCents: 15000,
				TotalCents:            40000,
				PlatformFeeCents:      3000,
				ArtistPayoutCents:     37000,
			},
		},
		{
			name: "explicit commercial price below base yields no uplift",
			artwork: models.Artwork{
				PriceCents:           25000,
				CommercialPriceCents: int64Ptr(20000),
				AllowsCommercial:     true,
			},
			useType: enums.UseTypeCommercial,
			want: PriceQuote{
				BasePriceCents:    25000,
				TotalCents:        25000,
				PlatformFeeCents:  1875,
				ArtistPayoutCents: 23125,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := QuotePrice(&tc.artwork, tc.useType, pricingCfg)
			if err != nil {
				t.Fatalf("QuotePrice error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("quote mismatch:\n got %+v\nwant %+v", got, tc.want)
			}
			if got.PlatformFeeCents+got.ArtistPayoutCents != got.TotalCents {
				t.Fatalf("fee %d + payout %d must equal total %d",
					got.PlatformFeeCents, got.ArtistPayoutCents, got.TotalCents)
			}
		})
	}
}

func TestQuotePriceRejectsDisallowedCommercialUse(t *testing.T) {
	artwork := models.Artwork{PriceCents: 25000, AllowsCommercial: false}

	_, err := QuotePrice(&artwork, enums.UseTypeCommercial, pricingCfg)
	appErr := errors.As(err)
	if appErr == nil || appErr.Code() != errors.CodeCommercialUse {
		t.Fatalf("expected %s, got %v", errors.CodeCommercialUse, err)
	}
}

func TestQuotePriceRejectsInvalidUseType(t *testing.T) {
	artwork := models.Artwork{PriceCents: 25000}

	_, err := QuotePrice(&artwork, enums.UseType("framing"), pricingCfg)
	appErr := errors.As(err)
	if appErr == nil || appErr.Code() != errors.CodeValidation {
		t.Fatalf("expected %s, got %v", errors.CodeValidation, err)
	}
}

package purchases

import (
	"github.com/shopspring/decimal"

	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
	"github.com/humanpalette/palette-backend/pkg/errors"
)

// PriceQuote is the full breakdown of a purchase before any money moves.
// PlatformFeeCents + ArtistPayoutCents always equals TotalCents.
type PriceQuote struct {
	BasePriceCents        int64 `json:"base_price_cents"`
	CommercialUpliftCents int64 `json:"commercial_uplift_cents"`
	TotalCents            int64 `json:"total_cents"`
	PlatformFeeCents      int64 `json:"platform_fee_cents"`
	ArtistPayoutCents     int64 `json:"artist_payout_cents"`
}

// QuotePrice computes the settlement breakdown for buying the artwork under
// the given use type. Commercial use pays the artist's explicit commercial
// price when one is set, otherwise the base price scaled by the configured
// multiplier. The platform fee is floored so rounding always favors the
// artist.
func QuotePrice(artwork *models.Artwork, useType enums.UseType, cfg config.PricingConfig) (PriceQuote, error) {
	if artwork == nil {
		return PriceQuote{}, errors.New(errors.CodeValidation, "artwork is required")
	}
	if !useType.IsValid() {
		return PriceQuote{}, errors.New(errors.CodeValidation, "invalid use type")
	}

	base := artwork.PriceCents
	var uplift int64

	if useType == enums.UseTypeCommercial {
		if !artwork.AllowsCommercial {
			return PriceQuote{}, errors.New(errors.CodeCommercialUse, "artwork does not permit commercial use")
		}
		commercial := base
		if artwork.CommercialPriceCents != nil {
			commercial = *artwork.CommercialPriceCents
		} else {
			commercial = decimal.NewFromInt(base).
				Mul(decimal.NewFromFloat(cfg.CommercialMultiplier)).
				Floor().
				IntPart()
		}
		if commercial > base {
			uplift = commercial - base
		}
	}

	total := base + uplift
	fee := decimal.NewFromInt(total).
		Mul(decimal.NewFromFloat(cfg.PlatformFeeRate)).
		Floor().
		IntPart()

	return PriceQuote{
		BasePriceCents:        base,
		CommercialUpliftCents: uplift,
		TotalCents:            total,
		PlatformFeeCents:      fee,
		ArtistPayoutCents:     total - fee,
	}, nil
}

package billing

import (
	"tabble/internal/models"

	"github.com/shopspring/decimal"
)

type offerTier struct {
	minimum decimal.Decimal
	amount  decimal.Decimal
	message string
}

// Highest threshold first.
var fallbackTiers = []offerTier{
	{
		minimum: decimal.NewFromInt(100),
		amount:  decimal.NewFromInt(15),
		message: "Special Offer: ₹15 off on orders above ₹100",
	},
	{
		minimum: decimal.NewFromInt(50),
		amount:  decimal.NewFromInt(5),
		message: "Special Offer: ₹5 off on orders above ₹50",
	},
}

// FallbackOffer returns the selection offer used when the backend cannot be asked
func FallbackOffer(total decimal.Decimal) models.SelectionOfferDiscount {
	for _, tier := range fallbackTiers {
		if total.GreaterThanOrEqual(tier.minimum) {
			return models.SelectionOfferDiscount{Amount: tier.amount, Message: tier.message}
		}
	}
	return models.SelectionOfferDiscount{Amount: decimal.Zero, Message: "No special offer available"}
}

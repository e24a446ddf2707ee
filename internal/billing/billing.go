// Package billing derives the payable amount for a table's completed orders.
package billing

import (
	"context"

	"tabble/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Bill is the breakdown shown before payment
type Bill struct {
	Subtotal          decimal.Decimal
	LoyaltyPercentage decimal.Decimal
	LoyaltyAmount     decimal.Decimal
	LoyaltyMessage    string
	OfferAmount       decimal.Decimal
	OfferMessage      string
	Total             decimal.Decimal
}

// Subtotal sums dish price times quantity across all orders
func Subtotal(orders []models.Order) decimal.Decimal {
	total := decimal.Zero
	for i := range orders {
		total = total.Add(orders[i].Amount())
	}
	return total
}

// Compute applies the loyalty percentage and the flat offer to the orders.
// The payable total never drops below zero.
func Compute(orders []models.Order, loyalty models.LoyaltyDiscount, offer models.SelectionOfferDiscount) Bill {
	subtotal := Subtotal(orders)

	loyaltyAmount := decimal.Zero
	if loyalty.Percentage.IsPositive() {
		loyaltyAmount = subtotal.Mul(loyalty.Percentage).Div(hundred)
	}

	offerAmount := offer.Amount
	if offerAmount.IsNegative() {
		offerAmount = decimal.Zero
	}

	total := subtotal.Sub(loyaltyAmount).Sub(offerAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Bill{
		Subtotal:          subtotal,
		LoyaltyPercentage: loyalty.Percentage,
		LoyaltyAmount:     loyaltyAmount,
		LoyaltyMessage:    loyalty.Message,
		OfferAmount:       offerAmount,
		OfferMessage:      offer.Message,
		Total:             total,
	}
}

// View is the bill with every amount rounded to two decimals for display
type View struct {
	Subtotal          string `json:"subtotal"`
	LoyaltyPercentage string `json:"loyalty_percentage"`
	LoyaltyAmount     string `json:"loyalty_amount"`
	LoyaltyMessage    string `json:"loyalty_message"`
	OfferAmount       string `json:"offer_amount"`
	OfferMessage      string `json:"offer_message"`
	Total             string `json:"total"`
}

// View formats the bill for display
func (b Bill) View() View {
	return View{
		Subtotal:          b.Subtotal.StringFixed(2),
		LoyaltyPercentage: b.LoyaltyPercentage.String(),
		LoyaltyAmount:     b.LoyaltyAmount.StringFixed(2),
		LoyaltyMessage:    b.LoyaltyMessage,
		OfferAmount:       b.OfferAmount.StringFixed(2),
		OfferMessage:      b.OfferMessage,
		Total:             b.Total.StringFixed(2),
	}
}

// LoyaltyLookup fetches the loyalty tier for a visit count
type LoyaltyLookup interface {
	GetLoyaltyDiscount(ctx context.Context, visitCount int) (models.LoyaltyDiscount, error)
}

// OfferLookup fetches the selection offer for an order total
type OfferLookup interface {
	GetSelectionOfferDiscount(ctx context.Context, total decimal.Decimal) (models.SelectionOfferDiscount, error)
}

// ResolveLoyalty asks the backend for the person's loyalty discount.
// First-time visitors and failed lookups get no discount.
func ResolveLoyalty(ctx context.Context, lookup LoyaltyLookup, person *models.Person, log *zap.Logger) models.LoyaltyDiscount {
	if person == nil || person.VisitCount <= 0 {
		return models.NoLoyaltyDiscount()
	}
	discount, err := lookup.GetLoyaltyDiscount(ctx, person.VisitCount)
	if err != nil {
		log.Warn("loyalty discount lookup failed",
			zap.Int("person_id", person.ID),
			zap.Int("visit_count", person.VisitCount),
			zap.Error(err))
		return models.NoLoyaltyDiscount()
	}
	return discount
}

// ResolveOffer asks the backend for the selection offer and falls back to
// the local table when the lookup fails.
func ResolveOffer(ctx context.Context, lookup OfferLookup, total decimal.Decimal, log *zap.Logger) models.SelectionOfferDiscount {
	offer, err := lookup.GetSelectionOfferDiscount(ctx, total)
	if err != nil {
		log.Warn("selection offer lookup failed, using local offers",
			zap.String("order_total", total.StringFixed(2)),
			zap.Error(err))
		return FallbackOffer(total)
	}
	return offer
}

package models

import "github.com/shopspring/decimal"

// LoyaltyDiscount is the percentage discount earned through repeat visits
type LoyaltyDiscount struct {
	Percentage decimal.Decimal `json:"discount_percentage"`
	Message    string          `json:"message"`
}

// SelectionOfferDiscount is a flat discount keyed to the order total
type SelectionOfferDiscount struct {
	Amount  decimal.Decimal `json:"discount_amount"`
	Message string          `json:"message"`
}

// NoLoyaltyDiscount is used whenever no tier applies or the lookup fails
func NoLoyaltyDiscount() LoyaltyDiscount {
	return LoyaltyDiscount{Percentage: decimal.Zero, Message: "No loyalty discount available"}
}

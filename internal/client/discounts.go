package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"tabble/internal/models"

	"github.com/shopspring/decimal"
)

// GetLoyaltyDiscount retrieves the loyalty tier that applies to a visit count
func (c *Client) GetLoyaltyDiscount(ctx context.Context, visitCount int) (models.LoyaltyDiscount, error) {
	var discount models.LoyaltyDiscount
	path := fmt.Sprintf("/api/loyalty/discount/%d", visitCount)
	if err := c.do(ctx, "get_loyalty_discount", http.MethodGet, path, nil, nil, &discount); err != nil {
		return models.LoyaltyDiscount{}, err
	}
	return discount, nil
}

// GetSelectionOfferDiscount retrieves the flat offer for an order total
func (c *Client) GetSelectionOfferDiscount(ctx context.Context, total decimal.Decimal) (models.SelectionOfferDiscount, error) {
	var offer models.SelectionOfferDiscount
	query := url.Values{"order_amount": {total.StringFixed(2)}}
	if err := c.do(ctx, "get_selection_offer_discount", http.MethodGet, "/api/selection-offers/discount", query, nil, &offer); err != nil {
		return models.SelectionOfferDiscount{}, err
	}
	return offer, nil
}

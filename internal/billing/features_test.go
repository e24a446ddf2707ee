package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"tabble/internal/models"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type billTestContext struct {
	orders  []models.Order
	loyalty models.LoyaltyDiscount
	offer   models.SelectionOfferDiscount
	lookup  *stubLookup
	bill    Bill
}

func (c *billTestContext) reset() {
	c.orders = nil
	c.loyalty = models.NoLoyaltyDiscount()
	c.offer = models.SelectionOfferDiscount{}
	c.lookup = &stubLookup{}
	c.bill = Bill{}
}

func (c *billTestContext) aCompletedOrderWith(qty int, price string) error {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	c.orders = append(c.orders, models.Order{
		ID:     len(c.orders) + 1,
		Status: models.OrderStatusCompleted,
		Items: []models.OrderItem{
			{DishID: 1, Dish: &models.Dish{ID: 1, Price: p}, Quantity: qty},
		},
	})
	return nil
}

func (c *billTestContext) aLoyaltyDiscountOf(percent int) error {
	c.loyalty = models.LoyaltyDiscount{Percentage: decimal.NewFromInt(int64(percent))}
	return nil
}

func (c *billTestContext) aSelectionOfferOf(amount int) error {
	c.offer = models.SelectionOfferDiscount{Amount: decimal.NewFromInt(int64(amount))}
	return nil
}

func (c *billTestContext) theBillIsComputed() error {
	c.bill = Compute(c.orders, c.loyalty, c.offer)
	return nil
}

func (c *billTestContext) theOfferLookupIsUnavailable() error {
	c.lookup.err = errors.New("service unavailable")
	return nil
}

func (c *billTestContext) theOfferForATotalIsResolved(total int) error {
	c.offer = ResolveOffer(context.Background(), c.lookup, decimal.NewFromInt(int64(total)), zap.NewNop())
	return nil
}

func expectAmount(name string, got decimal.Decimal, want string) error {
	if got.StringFixed(2) != want {
		return fmt.Errorf("expected %s %s, got %s", name, want, got.StringFixed(2))
	}
	return nil
}

func (c *billTestContext) theSubtotalIs(want string) error {
	return expectAmount("subtotal", c.bill.Subtotal, want)
}

func (c *billTestContext) theLoyaltyAmountIs(want string) error {
	return expectAmount("loyalty amount", c.bill.LoyaltyAmount, want)
}

func (c *billTestContext) thePayableTotalIs(want string) error {
	return expectAmount("total", c.bill.Total, want)
}

func (c *billTestContext) theOfferAmountIs(want string) error {
	return expectAmount("offer amount", c.offer.Amount, want)
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &billTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a completed order with (\d+) of a dish priced ([\d.]+)$`, tc.aCompletedOrderWith)
	ctx.Step(`^a loyalty discount of (\d+) percent$`, tc.aLoyaltyDiscountOf)
	ctx.Step(`^a selection offer of (\d+) off$`, tc.aSelectionOfferOf)
	ctx.Step(`^the offer lookup is unavailable$`, tc.theOfferLookupIsUnavailable)

	// When steps
	ctx.Step(`^the bill is computed$`, tc.theBillIsComputed)
	ctx.Step(`^the offer for a total of (\d+) is resolved$`, tc.theOfferForATotalIsResolved)

	// Then steps
	ctx.Step(`^the subtotal is "([^"]*)"$`, tc.theSubtotalIs)
	ctx.Step(`^the loyalty amount is "([^"]*)"$`, tc.theLoyaltyAmountIs)
	ctx.Step(`^the payable total is "([^"]*)"$`, tc.thePayableTotalIs)
	ctx.Step(`^the offer amount is "([^"]*)"$`, tc.theOfferAmountIs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/billing.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

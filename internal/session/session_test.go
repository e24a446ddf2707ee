package session

import (
	"context"
	"testing"
	"time"

	"tabble/internal/client"
	"tabble/internal/database"
	"tabble/internal/flow"
	"tabble/internal/models"
	"tabble/internal/monitoring"
	"tabble/internal/ordering"
	"tabble/internal/restauranttest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	upstream *restauranttest.Server
	store    *database.Store
	session  *Session
}

func start(t *testing.T, identity ordering.Identity) *fixture {
	t.Helper()
	upstream := restauranttest.New(t)
	upstream.AddPerson(3, 6)

	store, err := database.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	api := client.New(client.Options{BaseURL: upstream.URL, Timeout: time.Second}, zap.NewNop(), monitoring.NewMonitor(10), nil)
	s, err := Start(context.Background(), api, store, identity, Config{
		PollInterval:  time.Hour,
		FeedbackDelay: 10 * time.Millisecond,
	}, zap.NewNop(), monitoring.NewCollector())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return &fixture{upstream: upstream, store: store, session: s}
}

func guest() ordering.Identity {
	return ordering.Identity{TableNumber: 4, UniqueID: "device-1", PersonID: 3}
}

func addDish(t *testing.T, s *Session, dishID, quantity int) {
	t.Helper()
	require.NoError(t, s.SelectDish(dishID))
	require.NoError(t, s.AddSelected(quantity, ""))
}

func TestStartLoadsMenuAndOccupiesTable(t *testing.T) {
	f := start(t, guest())

	menu := f.session.Menu("")
	assert.Len(t, menu.Dishes, 4)
	assert.Len(t, f.session.Menu("Mains").Dishes, 1)
	assert.True(t, f.upstream.Table(4).IsOccupied)

	view := f.session.View()
	require.NotNil(t, view.Table)
	assert.True(t, view.Table.IsOccupied)
	assert.Equal(t, 4, view.Table.TableNumber)
	assert.Equal(t, flow.Browsing, view.Phase)
	assert.Equal(t, "0.00", view.CartTotal)
}

func TestStartValidatesTable(t *testing.T) {
	upstream := restauranttest.New(t)
	api := client.New(client.Options{BaseURL: upstream.URL}, zap.NewNop(), nil, nil)

	_, err := Start(context.Background(), api, nil, ordering.Identity{PersonID: 3}, Config{}, zap.NewNop(), monitoring.NewCollector())
	var validation *models.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestMenuFailureBecomesNotice(t *testing.T) {
	upstream := restauranttest.New(t)
	upstream.SetMenuDown(true)
	api := client.New(client.Options{BaseURL: upstream.URL}, zap.NewNop(), nil, nil)

	s, err := Start(context.Background(), api, nil, ordering.Identity{TableNumber: 2}, Config{}, zap.NewNop(), monitoring.NewCollector())
	require.NoError(t, err)
	defer s.Close()

	view := s.View()
	require.NotNil(t, view.Notice)
	assert.Equal(t, SeverityError, view.Notice.Severity)
	assert.NotEmpty(t, view.UniqueID)
	assert.Empty(t, s.Menu("").Dishes)
}

func TestCartFlow(t *testing.T) {
	f := start(t, guest())
	s := f.session

	require.NoError(t, s.SelectDish(2))
	assert.Equal(t, flow.ItemDetail, s.View().Phase)
	assert.Equal(t, "Veg Biryani", s.View().SelectedDish.Name)

	assert.Error(t, s.AddSelected(0, ""))
	require.NoError(t, s.AddSelected(2, "no onion"))
	assert.Equal(t, flow.Browsing, s.View().Phase)

	addDish(t, s, 3, 3)
	view := s.View()
	require.Len(t, view.Cart, 2)
	assert.Equal(t, "570.00", view.CartTotal)

	require.NoError(t, s.MoveItem(1, "up"))
	assert.Equal(t, 3, s.View().Cart[0].DishID)

	require.NoError(t, s.RemoveItem(0))
	view = s.View()
	require.Len(t, view.Cart, 1)
	assert.Equal(t, 1, view.Cart[0].Position)

	assert.Error(t, s.SelectDish(99))
	assert.ErrorIs(t, s.AddSelected(1, ""), ErrNoDishSelected)
}

func TestPlaceOrder(t *testing.T) {
	f := start(t, guest())
	s := f.session

	addDish(t, s, 1, 2)
	require.NoError(t, s.OpenCart())

	order, err := s.PlaceOrder(context.Background())
	require.NoError(t, err)

	view := s.View()
	assert.Equal(t, flow.Browsing, view.Phase)
	assert.Empty(t, view.Cart)
	assert.True(t, view.PlacedOrderInSession)
	assert.True(t, view.HasEverPlacedOrder)
	require.NotNil(t, view.CurrentOrder)
	assert.Equal(t, order.ID, view.CurrentOrder.ID)
	assert.Equal(t, "Waiting", view.CurrentStatus)
	assert.Equal(t, "Order placed successfully! Order #1", view.Notice.Message)

	placed := f.upstream.Orders()
	require.Len(t, placed, 1)
	assert.Equal(t, "device-1", placed[0].UniqueID)
}

func TestPlaceEmptyCart(t *testing.T) {
	f := start(t, guest())

	_, err := f.session.PlaceOrder(context.Background())
	var validation *models.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Empty(t, f.upstream.Orders())
}

func TestHistoryFlagSurvivesNewSession(t *testing.T) {
	f := start(t, guest())
	addDish(t, f.session, 1, 1)
	_, err := f.session.PlaceOrder(context.Background())
	require.NoError(t, err)
	f.upstream.SetStatus(1, models.OrderStatusCompleted)

	api := client.New(client.Options{BaseURL: f.upstream.URL}, zap.NewNop(), nil, nil)
	again, err := Start(context.Background(), api, nil, guest(), Config{PollInterval: time.Hour}, zap.NewNop(), monitoring.NewCollector())
	require.NoError(t, err)
	defer again.Close()

	assert.Eventually(t, func() bool { return again.View().HasEverPlacedOrder }, time.Second, 5*time.Millisecond)
	assert.False(t, again.View().PlacedOrderInSession)
}

func TestCancelOrder(t *testing.T) {
	f := start(t, guest())
	s := f.session
	ctx := context.Background()

	addDish(t, s, 1, 1)
	first, err := s.PlaceOrder(ctx)
	require.NoError(t, err)
	addDish(t, s, 3, 1)
	second, err := s.PlaceOrder(ctx)
	require.NoError(t, err)

	require.NoError(t, s.CancelOrder(ctx, second.ID))
	assert.Equal(t, "Order cancelled successfully", s.View().Notice.Message)
	assert.Equal(t, models.OrderStatusCancelled, f.upstream.Orders()[1].Status)

	f.upstream.SetStatus(first.ID, models.OrderStatusAccepted)
	_, err = s.OpenPayment(ctx)
	require.ErrorIs(t, err, ErrNoEligibleOrders)

	err = s.CancelOrder(ctx, first.ID)
	assert.ErrorIs(t, err, ordering.ErrNotCancellable)
	assert.Equal(t, 1, f.upstream.Calls("PUT /api/customer/api/orders/:id/cancel"))

	assert.ErrorIs(t, s.CancelOrder(ctx, 99), ErrUnknownOrder)
}

func TestOpenPaymentWithoutCompletedOrders(t *testing.T) {
	f := start(t, guest())
	addDish(t, f.session, 1, 1)
	_, err := f.session.PlaceOrder(context.Background())
	require.NoError(t, err)

	_, err = f.session.OpenPayment(context.Background())
	assert.ErrorIs(t, err, ErrNoEligibleOrders)

	view := f.session.View()
	assert.Equal(t, flow.Browsing, view.Phase)
	assert.Equal(t, SeverityWarning, view.Notice.Severity)
	assert.Equal(t, msgNoEligible, view.Notice.Message)
}

func TestPaymentFlow(t *testing.T) {
	f := start(t, guest())
	s := f.session
	ctx := context.Background()

	addDish(t, s, 1, 1)
	_, err := s.PlaceOrder(ctx)
	require.NoError(t, err)
	f.upstream.SetStatus(1, models.OrderStatusCompleted)

	bill, err := s.OpenPayment(ctx)
	require.NoError(t, err)
	assert.Equal(t, "120.00", bill.Subtotal)
	assert.Equal(t, "12.00", bill.LoyaltyAmount)
	assert.Equal(t, "15.00", bill.OfferAmount)
	assert.Equal(t, "93.00", bill.Total)
	assert.Equal(t, flow.Payment, s.View().Phase)
	require.NotNil(t, s.View().Bill)

	result, err := s.CompletePayment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, "Payment completed successfully! The bill will arrive at your table soon.", s.View().Notice.Message)

	assert.Eventually(t, func() bool { return s.View().Phase == flow.Feedback }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.FeedbackDone())
	assert.Equal(t, flow.Browsing, s.View().Phase)

	assert.Empty(t, s.View().TableOrders)
	assert.Nil(t, s.View().CurrentOrder)

	attempts, err := s.Payments(ctx)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Succeeded)
}

func TestPaymentUsesLocalOffersWhenLookupFails(t *testing.T) {
	f := start(t, guest())
	s := f.session
	ctx := context.Background()
	f.upstream.SetOffersDown(true)

	addDish(t, s, 4, 1)
	_, err := s.PlaceOrder(ctx)
	require.NoError(t, err)
	f.upstream.SetStatus(1, models.OrderStatusCompleted)

	bill, err := s.OpenPayment(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5.00", bill.OfferAmount)
	assert.Equal(t, "Special Offer: ₹5 off on orders above ₹50", bill.OfferMessage)
}

func TestPartialPayment(t *testing.T) {
	f := start(t, guest())
	s := f.session
	ctx := context.Background()

	for _, dish := range []int{1, 3, 4} {
		addDish(t, s, dish, 1)
		_, err := s.PlaceOrder(ctx)
		require.NoError(t, err)
	}
	for id := 1; id <= 3; id++ {
		f.upstream.SetStatus(id, models.OrderStatusCompleted)
	}
	f.upstream.FailPaymentFor(2)

	_, err := s.OpenPayment(ctx)
	require.NoError(t, err)

	result, err := s.CompletePayment(ctx)
	var partial *ordering.PartialFailure
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)

	view := s.View()
	assert.Equal(t, SeverityWarning, view.Notice.Severity)
	assert.Equal(t, "2 orders paid successfully. 1 orders failed. Please try again for failed orders.", view.Notice.Message)
	require.NotNil(t, view.LastPayment)
	assert.Equal(t, 1, view.LastPayment.ErrorCount)

	require.Len(t, view.TableOrders, 1)
	assert.Equal(t, 2, view.TableOrders[0].ID)

	assert.Eventually(t, func() bool { return s.View().Phase == flow.Feedback }, time.Second, 5*time.Millisecond)
}

func TestFailedPaymentReturnsToBrowsing(t *testing.T) {
	f := start(t, guest())
	s := f.session
	ctx := context.Background()

	addDish(t, s, 1, 1)
	_, err := s.PlaceOrder(ctx)
	require.NoError(t, err)
	f.upstream.SetStatus(1, models.OrderStatusCompleted)
	f.upstream.FailPaymentFor(1)

	_, err = s.OpenPayment(ctx)
	require.NoError(t, err)
	_, err = s.CompletePayment(ctx)
	require.Error(t, err)

	view := s.View()
	assert.Equal(t, flow.Browsing, view.Phase)
	assert.Equal(t, "Error processing payment. Please try again.", view.Notice.Message)
}

func TestCompletePaymentNeedsPaymentDialog(t *testing.T) {
	f := start(t, guest())

	_, err := f.session.CompletePayment(context.Background())
	assert.ErrorIs(t, err, flow.ErrInvalidTransition)
}

func TestSubscribeReceivesViews(t *testing.T) {
	f := start(t, guest())
	s := f.session

	views, unsubscribe := s.Subscribe()
	defer unsubscribe()

	first := <-views
	assert.Equal(t, flow.Browsing, first.Phase)

	require.NoError(t, s.SelectDish(1))
	assert.Eventually(t, func() bool {
		select {
		case v := <-views:
			return v.Phase == flow.ItemDetail
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestClose(t *testing.T) {
	f := start(t, guest())
	s := f.session

	views, _ := s.Subscribe()
	s.Close()
	s.Close()

	assert.ErrorIs(t, s.SelectDish(1), ErrClosed)
	assert.ErrorIs(t, s.OpenCart(), ErrClosed)
	_, err := s.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	for range views {
	}
}

func TestPlaceOrderDoesNotBlockViews(t *testing.T) {
	f := start(t, guest())
	s := f.session
	addDish(t, s, 1, 1)

	release := f.upstream.HoldOrders()
	defer release()

	placed := make(chan error, 1)
	go func() {
		_, err := s.PlaceOrder(context.Background())
		placed <- err
	}()
	require.Eventually(t, func() bool { return f.upstream.HeldOrders() == 1 }, time.Second, time.Millisecond)

	viewed := make(chan View, 1)
	go func() { viewed <- s.View() }()
	select {
	case view := <-viewed:
		assert.Len(t, view.Cart, 1)
	case <-time.After(time.Second):
		t.Fatal("view blocked while the order was in flight")
	}

	release()
	require.NoError(t, <-placed)
	assert.Empty(t, s.View().Cart)
}

func TestCancelOrderOfAnotherTable(t *testing.T) {
	f := start(t, guest())

	api := client.New(client.Options{BaseURL: f.upstream.URL}, zap.NewNop(), nil, nil)
	other, err := Start(context.Background(), api, nil, ordering.Identity{TableNumber: 9, UniqueID: "device-9"}, Config{}, zap.NewNop(), monitoring.NewCollector())
	require.NoError(t, err)
	defer other.Close()

	addDish(t, other, 1, 1)
	order, err := other.PlaceOrder(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, f.session.CancelOrder(context.Background(), order.ID), ErrUnknownOrder)
	assert.Equal(t, models.OrderStatusPending, f.upstream.Orders()[0].Status)

	// no poller runs for an anonymous session, the order is read from the server
	require.NoError(t, other.CancelOrder(context.Background(), order.ID))
	assert.Equal(t, models.OrderStatusCancelled, f.upstream.Orders()[0].Status)
}

func TestPaymentPaysOnlyBilledOrders(t *testing.T) {
	f := start(t, guest())
	s := f.session
	ctx := context.Background()

	addDish(t, s, 1, 1)
	_, err := s.PlaceOrder(ctx)
	require.NoError(t, err)
	addDish(t, s, 3, 1)
	_, err = s.PlaceOrder(ctx)
	require.NoError(t, err)
	f.upstream.SetStatus(1, models.OrderStatusCompleted)

	bill, err := s.OpenPayment(ctx)
	require.NoError(t, err)
	assert.Equal(t, "120.00", bill.Subtotal)

	// the kitchen finishes the second order while the bill is open
	f.upstream.SetStatus(2, models.OrderStatusCompleted)
	_, err = s.poller.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, s.View().PaymentEligible, 2)

	result, err := s.CompletePayment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, f.upstream.Calls("PUT /api/customer/api/orders/:id/payment"))

	orders := f.upstream.Orders()
	assert.Equal(t, models.OrderStatusPaid, orders[0].Status)
	assert.Equal(t, models.OrderStatusCompleted, orders[1].Status)
}

func TestCompletePaymentAfterDismissedBill(t *testing.T) {
	f := start(t, guest())
	s := f.session
	ctx := context.Background()

	addDish(t, s, 1, 1)
	_, err := s.PlaceOrder(ctx)
	require.NoError(t, err)
	f.upstream.SetStatus(1, models.OrderStatusCompleted)

	_, err = s.OpenPayment(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Dismiss())
	assert.Nil(t, s.View().Bill)

	_, err = s.CompletePayment(ctx)
	assert.Error(t, err)
	assert.Zero(t, f.upstream.Calls("PUT /api/customer/api/orders/:id/payment"))
}

func TestCancelledPaymentReportsFailure(t *testing.T) {
	f := start(t, guest())
	s := f.session

	addDish(t, s, 1, 1)
	_, err := s.PlaceOrder(context.Background())
	require.NoError(t, err)
	f.upstream.SetStatus(1, models.OrderStatusCompleted)

	_, err = s.OpenPayment(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := s.CompletePayment(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)

	view := s.View()
	assert.Equal(t, flow.Browsing, view.Phase)
	assert.Equal(t, SeverityError, view.Notice.Severity)
	assert.Equal(t, "Error processing payment. Please try again.", view.Notice.Message)
	assert.Equal(t, models.OrderStatusCompleted, f.upstream.Orders()[0].Status)
}

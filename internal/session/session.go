// Package session runs one table's ordering session: menu, cart, dialogs,
// order tracking and payment.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tabble/internal/billing"
	"tabble/internal/cart"
	"tabble/internal/client"
	"tabble/internal/flow"
	"tabble/internal/models"
	"tabble/internal/monitoring"
	"tabble/internal/ordering"
	"tabble/internal/poller"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNoEligibleOrders is returned when payment is requested with no completed orders
	ErrNoEligibleOrders = errors.New("no completed orders to pay")
	// ErrClosed is returned by every action after Close
	ErrClosed = errors.New("session closed")
	// ErrUnknownOrder is returned for an order id not belonging to this table
	ErrUnknownOrder = errors.New("unknown order")
	// ErrNoDishSelected is returned when adding to the cart without a selected dish
	ErrNoDishSelected = errors.New("no dish selected")
)

// API is the part of the restaurant API a session uses
type API interface {
	LoadMenu(ctx context.Context) (*models.Menu, error)
	SetTableOccupied(ctx context.Context, tableNumber int) error
	GetTable(ctx context.Context, tableNumber int) (*models.Table, error)
	GetOrder(ctx context.Context, orderID int) (*models.Order, error)
	poller.Source
	billing.OfferLookup
	ordering.OrderCreator
	ordering.OrderCanceler
	ordering.PaymentRequester
}

// Journal stores and lists payment attempts
type Journal interface {
	ordering.Journal
	PaymentAttempts(ctx context.Context, tableNumber int) ([]models.PaymentAttempt, error)
}

// Config holds the session timings
type Config struct {
	PollInterval  time.Duration
	FeedbackDelay time.Duration
}

// Session is one table's ordering session. Actions are serialised; the
// poller updates the order snapshot concurrently.
type Session struct {
	id        string
	identity  ordering.Identity
	api       API
	journal   Journal
	cfg       Config
	log       *zap.Logger
	collector *monitoring.Collector

	placer   *ordering.Placer
	canceler *ordering.Canceler
	payer    *ordering.Payer
	flow     *flow.Controller
	poller   *poller.Poller

	cancel context.CancelFunc
	done   chan struct{}

	// actions serialises customer actions
	actions sync.Mutex

	mu              sync.Mutex
	closed          bool
	menu            *models.Menu
	cart            *cart.Cart
	selected        *models.Dish
	snapshot        poller.Snapshot
	table           *models.Table
	bill            *billing.Bill
	billOrders      []models.Order
	placedInSession bool
	lastPayment     *PaymentSummary
	notice          *Notice
	subscribers     map[int]chan View
	nextSubscriber  int
}

// Start opens a session for a table: it loads the menu, marks the table as
// occupied and, for a known person, starts polling their orders.
func Start(ctx context.Context, api API, journal Journal, identity ordering.Identity, cfg Config, log *zap.Logger, collector *monitoring.Collector) (*Session, error) {
	if identity.UniqueID == "" {
		identity.UniqueID = uuid.NewString()
	}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if cfg.FeedbackDelay <= 0 {
		cfg.FeedbackDelay = time.Second
	}

	s := &Session{
		id:          uuid.NewString(),
		identity:    identity,
		api:         api,
		journal:     journal,
		cfg:         cfg,
		collector:   collector,
		placer:      ordering.NewPlacer(api, log, collector),
		canceler:    ordering.NewCanceler(api, log),
		cart:        cart.New(),
		menu:        &models.Menu{},
		done:        make(chan struct{}),
		subscribers: make(map[int]chan View),
	}
	s.log = log.With(zap.String("session_id", s.id), zap.Int("table_number", identity.TableNumber))
	s.snapshot = poller.Derive(nil, identity.TableNumber)
	s.snapshot.Loyalty = models.NoLoyaltyDiscount()

	var paymentJournal ordering.Journal
	if journal != nil {
		paymentJournal = journal
	}
	s.payer = ordering.NewPayer(api, paymentJournal, s.log, collector)
	s.flow = flow.NewController(s.phaseChanged)

	menu, err := api.LoadMenu(ctx)
	if err != nil {
		s.log.Warn("menu load failed", zap.Error(err))
		s.setNotice(SeverityError, msgMenuLoadFailed)
	} else {
		s.menu = menu
	}

	if err := api.SetTableOccupied(ctx, identity.TableNumber); err != nil {
		s.log.Warn("failed to mark table occupied", zap.Error(err))
	} else if table, err := api.GetTable(ctx, identity.TableNumber); err != nil {
		s.log.Warn("failed to read table", zap.Error(err))
	} else {
		s.table = table
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if identity.PersonID > 0 {
		p, err := poller.New(api, poller.Config{
			PersonID:    identity.PersonID,
			TableNumber: identity.TableNumber,
			Interval:    cfg.PollInterval,
		}, s.applySnapshot, log, collector)
		if err != nil {
			cancel()
			return nil, err
		}
		s.poller = p
		go func() {
			defer close(s.done)
			p.Run(runCtx)
		}()
	} else {
		close(s.done)
	}

	collector.SessionOpened()
	s.log.Info("session started", zap.Int("person_id", identity.PersonID))
	return s, nil
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Identity returns who the session orders for
func (s *Session) Identity() ordering.Identity {
	return s.identity
}

// Close stops polling and pending dialog timers. Later actions fail with
// ErrClosed and late poll results are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subscribers := s.subscribers
	s.subscribers = make(map[int]chan View)
	s.mu.Unlock()

	s.cancel()
	<-s.done
	s.flow.Close()

	for _, ch := range subscribers {
		close(ch)
	}
	s.collector.SessionClosed()
	s.log.Info("session closed")
}

// Menu returns the cached menu dishes, optionally limited to one category
func (s *Session) Menu(category string) *models.Menu {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.Menu{
		Categories: s.menu.Categories,
		Dishes:     s.menu.InCategory(category),
		Offers:     s.menu.Offers,
		Specials:   s.menu.Specials,
	}
}

// SelectDish opens the item detail dialog for a dish on the menu
func (s *Session) SelectDish(dishID int) error {
	s.actions.Lock()
	defer s.actions.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	dish, ok := s.menu.Find(dishID)
	s.mu.Unlock()
	if !ok {
		return models.NewValidationError("dish_id", "dish %d is not on the menu", dishID)
	}

	if _, err := s.flow.Fire(flow.SelectDish); err != nil {
		return err
	}

	s.mu.Lock()
	s.selected = &dish
	s.mu.Unlock()
	s.publish()
	return nil
}

// AddSelected puts the selected dish into the cart and closes the dialog
func (s *Session) AddSelected(quantity int, remarks string) error {
	s.actions.Lock()
	defer s.actions.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.selected == nil {
		s.mu.Unlock()
		return ErrNoDishSelected
	}
	dish := *s.selected
	if err := s.cart.AddDish(dish, quantity, remarks); err != nil {
		s.mu.Unlock()
		return err
	}
	s.selected = nil
	s.setNoticeLocked(SeveritySuccess, fmt.Sprintf(msgAddedToCart, dish.Name))
	s.mu.Unlock()

	_, err := s.flow.Fire(flow.AddToCart)
	return err
}

// Dismiss closes whichever dialog is open
func (s *Session) Dismiss() error {
	s.actions.Lock()
	defer s.actions.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	phase := s.flow.Phase()
	if _, err := s.flow.Fire(flow.Dismiss); err != nil {
		return err
	}

	s.mu.Lock()
	s.selected = nil
	if phase == flow.Payment {
		s.bill = nil
		s.billOrders = nil
	}
	s.mu.Unlock()
	s.publish()
	return nil
}

// OpenCart opens the cart dialog
func (s *Session) OpenCart() error {
	s.actions.Lock()
	defer s.actions.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.flow.Fire(flow.OpenCart); err != nil {
		return err
	}
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	s.publish()
	return nil
}

// RemoveItem deletes a cart line
func (s *Session) RemoveItem(index int) error {
	return s.editCart(func(c *cart.Cart) error { return c.Remove(index) })
}

// MoveItem moves a cart line one slot up or down
func (s *Session) MoveItem(index int, dir cart.Direction) error {
	return s.editCart(func(c *cart.Cart) error { return c.Reorder(index, dir) })
}

func (s *Session) editCart(edit func(*cart.Cart) error) error {
	s.actions.Lock()
	defer s.actions.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	err := edit(s.cart)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish()
	return nil
}

// PlaceOrder submits the cart. On failure the cart is left as it was.
func (s *Session) PlaceOrder(ctx context.Context) (*models.Order, error) {
	s.actions.Lock()
	defer s.actions.Unlock()

	// the request goes out on a copy; cart edits wait on s.actions meanwhile
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	pending := s.cart.Clone()
	s.mu.Unlock()

	order, err := s.placer.Place(ctx, pending, s.identity)

	s.mu.Lock()
	if err != nil {
		var validation *models.ValidationError
		if !errors.As(err, &validation) {
			s.setNoticeLocked(SeverityError, msgOrderFailed)
		}
		s.mu.Unlock()
		s.publish()
		return nil, err
	}
	s.cart.Clear()
	s.placedInSession = true
	s.setNoticeLocked(SeveritySuccess, fmt.Sprintf(msgOrderPlaced, order.ID))
	s.mu.Unlock()

	if s.flow.Phase() == flow.Cart {
		if _, err := s.flow.Fire(flow.OrderPlaced); err != nil {
			s.log.Warn("closing cart dialog failed", zap.Error(err))
		}
	}
	s.refresh(ctx)
	return order, nil
}

// CancelOrder cancels one of the table's pending orders. The order is read
// fresh from the server so its status is current.
func (s *Session) CancelOrder(ctx context.Context, orderID int) error {
	s.actions.Lock()
	defer s.actions.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	order, err := s.api.GetOrder(ctx, orderID)
	switch {
	case client.IsKind(err, client.KindNotFound):
		return fmt.Errorf("order %d: %w", orderID, ErrUnknownOrder)
	case err != nil:
		s.setNotice(SeverityError, msgCancelFailed)
		s.publish()
		return err
	case order.TableNumber != s.identity.TableNumber:
		return fmt.Errorf("order %d: %w", orderID, ErrUnknownOrder)
	}

	if err := s.canceler.Cancel(ctx, order); err != nil {
		if errors.Is(err, ordering.ErrNotCancellable) {
			s.setNotice(SeverityWarning, msgNotCancellable)
		} else {
			s.setNotice(SeverityError, msgCancelFailed)
		}
		s.publish()
		return err
	}

	s.setNotice(SeveritySuccess, msgOrderCancelled)
	s.refresh(ctx)
	return nil
}

// OpenPayment re-fetches the table's orders and discounts and opens the
// payment dialog with a fresh bill for the completed orders.
func (s *Session) OpenPayment(ctx context.Context) (billing.View, error) {
	s.actions.Lock()
	defer s.actions.Unlock()

	if err := s.checkOpen(); err != nil {
		return billing.View{}, err
	}
	if s.poller == nil {
		s.setNotice(SeverityWarning, msgNoEligible)
		s.publish()
		return billing.View{}, ErrNoEligibleOrders
	}

	snapshot, err := s.poller.Refresh(ctx)
	if err != nil {
		s.log.Warn("payment refresh failed", zap.Error(err))
		s.setNotice(SeverityError, msgPaymentLoadFail)
		s.publish()
		return billing.View{}, err
	}

	if len(snapshot.PaymentEligible) == 0 {
		s.setNotice(SeverityWarning, msgNoEligible)
		s.publish()
		return billing.View{}, ErrNoEligibleOrders
	}

	offer := billing.ResolveOffer(ctx, s.api, billing.Subtotal(snapshot.PaymentEligible), s.log)
	bill := billing.Compute(snapshot.PaymentEligible, snapshot.Loyalty, offer)

	if _, err := s.flow.Fire(flow.OpenPayment); err != nil {
		return billing.View{}, err
	}

	s.mu.Lock()
	s.bill = &bill
	s.billOrders = append([]models.Order(nil), snapshot.PaymentEligible...)
	s.mu.Unlock()
	s.publish()
	return bill.View(), nil
}

// CompletePayment pays the orders on the open bill one after another. Orders
// that became payable after the bill was opened are not included. When at
// least one succeeds the feedback dialog follows after a short delay.
func (s *Session) CompletePayment(ctx context.Context) (ordering.Result, error) {
	s.actions.Lock()
	defer s.actions.Unlock()

	if err := s.checkOpen(); err != nil {
		return ordering.Result{}, err
	}
	if phase := s.flow.Phase(); phase != flow.Payment {
		return ordering.Result{}, fmt.Errorf("%w: complete payment on %s", flow.ErrInvalidTransition, phase)
	}

	s.mu.Lock()
	if s.bill == nil || len(s.billOrders) == 0 {
		s.mu.Unlock()
		return ordering.Result{}, ErrNoEligibleOrders
	}
	eligible := s.billOrders
	s.mu.Unlock()

	result, err := s.payer.PayAll(ctx, eligible, s.identity.TableNumber)

	summary := &PaymentSummary{
		BatchID:      result.BatchID,
		SuccessCount: result.SuccessCount,
		ErrorCount:   result.ErrorCount,
		Message:      result.Message(),
	}
	severity := SeveritySuccess
	switch result.Outcome() {
	case ordering.OutcomePartial:
		severity = SeverityWarning
	case ordering.OutcomeFailed:
		severity = SeverityError
	}

	s.mu.Lock()
	s.lastPayment = summary
	s.bill = nil
	s.billOrders = nil
	s.setNoticeLocked(severity, summary.Message)
	s.mu.Unlock()

	if result.SuccessCount > 0 {
		s.flow.ScheduleFeedback(s.cfg.FeedbackDelay)
	} else if _, ferr := s.flow.Fire(flow.PaymentFailed); ferr != nil {
		s.log.Warn("closing payment dialog failed", zap.Error(ferr))
	}

	s.refresh(ctx)
	return result, err
}

// FeedbackDone closes the feedback dialog
func (s *Session) FeedbackDone() error {
	s.actions.Lock()
	defer s.actions.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.flow.Fire(flow.FeedbackDone)
	return err
}

// Payments lists the payment journal of the session's table
func (s *Session) Payments(ctx context.Context) ([]models.PaymentAttempt, error) {
	if s.journal == nil {
		return []models.PaymentAttempt{}, nil
	}
	return s.journal.PaymentAttempts(ctx, s.identity.TableNumber)
}

// View returns the current state of the session
func (s *Session) View() View {
	phase := s.flow.Phase()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(phase)
}

// Subscribe returns a channel receiving the view after every change. Slow
// readers only see the latest view. The channel is closed with the session.
func (s *Session) Subscribe() (<-chan View, func()) {
	phase := s.flow.Phase()
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan View, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubscriber
	s.nextSubscriber++
	s.subscribers[id] = ch
	ch <- s.viewLocked(phase)

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
}

func (s *Session) viewLocked(phase flow.Phase) View {
	view := View{
		SessionID:            s.id,
		TableNumber:          s.identity.TableNumber,
		Table:                s.table,
		PersonID:             s.identity.PersonID,
		UniqueID:             s.identity.UniqueID,
		Phase:                phase,
		SelectedDish:         s.selected,
		Cart:                 s.cart.Items(),
		CartTotal:            s.cart.Total().StringFixed(2),
		TableOrders:          s.snapshot.TableUnpaid,
		PaymentEligible:      s.snapshot.PaymentEligible,
		Loyalty:              s.snapshot.Loyalty,
		HasEverPlacedOrder:   s.snapshot.HasEverPlacedOrder,
		PlacedOrderInSession: s.placedInSession,
		LastPayment:          s.lastPayment,
		Notice:               s.notice,
	}
	if s.snapshot.Current != nil {
		view.CurrentOrder = s.snapshot.Current
		view.CurrentStatus = s.snapshot.Current.Status.Label()
	}
	if s.bill != nil {
		bill := s.bill.View()
		view.Bill = &bill
	}
	return view
}

func (s *Session) publish() {
	phase := s.flow.Phase()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.subscribers) == 0 {
		return
	}
	view := s.viewLocked(phase)
	for _, ch := range s.subscribers {
		// drop a stale view nobody has read yet
		select {
		case <-ch:
		default:
		}
		ch <- view
	}
}

func (s *Session) phaseChanged(from, to flow.Phase) {
	s.log.Debug("phase changed", zap.String("from", string(from)), zap.String("to", string(to)))
	s.publish()
}

func (s *Session) applySnapshot(snapshot poller.Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.snapshot = snapshot
	s.mu.Unlock()
	s.publish()
}

func (s *Session) refresh(ctx context.Context) {
	if s.poller == nil {
		s.publish()
		return
	}
	if _, err := s.poller.Refresh(ctx); err != nil {
		s.log.Warn("refresh after action failed", zap.Error(err))
	}
	s.publish()
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Session) setNotice(severity Severity, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setNoticeLocked(severity, message)
}

func (s *Session) setNoticeLocked(severity Severity, message string) {
	s.notice = &Notice{Severity: severity, Message: message, At: time.Now()}
}

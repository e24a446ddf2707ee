// Package flow tracks which dialog of the ordering screen is open.
package flow

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Phase is the dialog currently shown to the customer
type Phase string

const (
	Browsing   Phase = "browsing"
	ItemDetail Phase = "item_detail"
	Cart       Phase = "cart"
	Payment    Phase = "payment"
	Feedback   Phase = "feedback"
)

// Event moves the controller between phases
type Event string

const (
	SelectDish       Event = "select_dish"
	AddToCart        Event = "add_to_cart"
	OpenCart         Event = "open_cart"
	OrderPlaced      Event = "order_placed"
	OpenPayment      Event = "open_payment"
	PaymentSucceeded Event = "payment_succeeded"
	PaymentFailed    Event = "payment_failed"
	FeedbackDone     Event = "feedback_done"
	Dismiss          Event = "dismiss"
)

// ErrInvalidTransition is returned when an event does not apply to the current phase
var ErrInvalidTransition = errors.New("invalid transition")

// ErrClosed is returned by a controller after Close
var ErrClosed = errors.New("flow controller closed")

type transition struct {
	from  Phase
	event Event
}

var transitions = map[transition]Phase{
	{Browsing, SelectDish}:      ItemDetail,
	{ItemDetail, AddToCart}:     Browsing,
	{ItemDetail, Dismiss}:       Browsing,
	{Browsing, OpenCart}:        Cart,
	{ItemDetail, OpenCart}:      Cart,
	{Cart, OrderPlaced}:         Browsing,
	{Cart, Dismiss}:             Browsing,
	{Browsing, OpenPayment}:     Payment,
	{Payment, PaymentSucceeded}: Feedback,
	{Payment, PaymentFailed}:    Browsing,
	{Payment, Dismiss}:          Browsing,
	{Feedback, FeedbackDone}:    Browsing,
	{Feedback, Dismiss}:         Browsing,
}

// Next returns the phase an event leads to from a given phase
func Next(from Phase, event Event) (Phase, error) {
	to, ok := transitions[transition{from, event}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
	}
	return to, nil
}

// Controller holds the current phase. It is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	phase    Phase
	closed   bool
	timer    *time.Timer
	onChange func(from, to Phase)
}

// NewController creates a controller in the Browsing phase. onChange, if not
// nil, is called after every successful transition, without the lock held.
func NewController(onChange func(from, to Phase)) *Controller {
	return &Controller{phase: Browsing, onChange: onChange}
}

// Phase returns the current phase
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Fire applies an event
func (c *Controller) Fire(event Event) (Phase, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	from := c.phase
	to, err := Next(from, event)
	if err != nil {
		c.mu.Unlock()
		return from, err
	}
	c.phase = to
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(from, to)
	}
	return to, nil
}

// ScheduleFeedback fires PaymentSucceeded after delay, moving a successful
// payment on to the feedback dialog. A pending schedule is replaced.
func (c *Controller) ScheduleFeedback(delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(delay, func() {
		// the customer may have dismissed the dialog meanwhile
		_, _ = c.Fire(PaymentSucceeded)
	})
}

// Close stops any pending schedule; later events are rejected
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

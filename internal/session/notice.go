package session

import "time"

// Severity of a notice shown to the customer
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a short message shown after an action
type Notice struct {
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

const (
	msgMenuLoadFailed  = "Error loading menu. Please refresh the page."
	msgOrderPlaced     = "Order placed successfully! Order #%d"
	msgOrderFailed     = "Error placing order. Please try again."
	msgOrderCancelled  = "Order cancelled successfully"
	msgCancelFailed    = "Error cancelling order. Please try again."
	msgNotCancellable  = "This order can no longer be cancelled."
	msgNoEligible      = "No completed orders found for payment. Orders must be completed by the chef before payment."
	msgPaymentLoadFail = "Error loading payment details. Please try again."
	msgAddedToCart     = "%s added to cart"
)

package ordering

import (
	"context"
	"fmt"

	"tabble/internal/models"
	"tabble/internal/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentRequester settles a single order on the server
type PaymentRequester interface {
	RequestPayment(ctx context.Context, orderID int) error
}

// Journal records every payment attempt
type Journal interface {
	RecordPaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
}

// Outcome summarises a payment batch
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomePartial
	OutcomeFailed
)

// Failure is one order that could not be paid
type Failure struct {
	OrderID int
	Err     error
}

// Result describes a payment batch
type Result struct {
	BatchID      string
	SuccessCount int
	ErrorCount   int
	Failures     []Failure
}

// Outcome classifies the batch by its counts. A batch that paid nothing
// has failed.
func (r Result) Outcome() Outcome {
	switch {
	case r.SuccessCount == 0:
		return OutcomeFailed
	case r.ErrorCount == 0:
		return OutcomeSucceeded
	default:
		return OutcomePartial
	}
}

// Message is the text shown to the customer after the batch
func (r Result) Message() string {
	switch r.Outcome() {
	case OutcomeSucceeded:
		return "Payment completed successfully! The bill will arrive at your table soon."
	case OutcomePartial:
		return fmt.Sprintf("%d orders paid successfully. %d orders failed. Please try again for failed orders.",
			r.SuccessCount, r.ErrorCount)
	default:
		return "Error processing payment. Please try again."
	}
}

// PartialFailure is returned when at least one order of a batch was not paid
type PartialFailure struct {
	SuccessCount int
	ErrorCount   int
	Failures     []Failure
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%d of %d order payments failed", e.ErrorCount, e.SuccessCount+e.ErrorCount)
}

// Unwrap exposes the per-order errors to errors.Is and errors.As
func (e *PartialFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Payer settles a set of orders one after another
type Payer struct {
	api       PaymentRequester
	journal   Journal
	log       *zap.Logger
	collector *monitoring.Collector
}

// NewPayer creates a new Payer. journal may be nil.
func NewPayer(api PaymentRequester, journal Journal, log *zap.Logger, collector *monitoring.Collector) *Payer {
	return &Payer{api: api, journal: journal, log: log, collector: collector}
}

// PayAll requests payment for each order in turn. A failed order does not
// stop the batch and paid orders are never rolled back. Once ctx is done the
// remaining orders are not attempted and count as failed. The returned error
// is a *PartialFailure when any order failed.
func (p *Payer) PayAll(ctx context.Context, orders []models.Order, tableNumber int) (Result, error) {
	result := Result{BatchID: uuid.NewString()}
	if len(orders) == 0 {
		return result, models.NewValidationError("orders", "no orders to pay")
	}

	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			result.ErrorCount++
			result.Failures = append(result.Failures, Failure{OrderID: order.ID, Err: err})
			continue
		}

		err := p.api.RequestPayment(ctx, order.ID)
		p.collector.PaymentAttempt(err)
		p.record(ctx, result.BatchID, order.ID, tableNumber, err)

		if err != nil {
			result.ErrorCount++
			result.Failures = append(result.Failures, Failure{OrderID: order.ID, Err: err})
			p.log.Warn("order payment failed",
				zap.String("batch_id", result.BatchID),
				zap.Int("order_id", order.ID),
				zap.Error(err))
			continue
		}
		result.SuccessCount++
	}

	p.log.Info("payment batch finished",
		zap.String("batch_id", result.BatchID),
		zap.Int("table_number", tableNumber),
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.ErrorCount))

	if result.ErrorCount > 0 {
		return result, &PartialFailure{
			SuccessCount: result.SuccessCount,
			ErrorCount:   result.ErrorCount,
			Failures:     result.Failures,
		}
	}
	return result, nil
}

func (p *Payer) record(ctx context.Context, batchID string, orderID, tableNumber int, payErr error) {
	if p.journal == nil {
		return
	}
	attempt := &models.PaymentAttempt{
		BatchID:     batchID,
		OrderID:     orderID,
		TableNumber: tableNumber,
		Succeeded:   payErr == nil,
	}
	if payErr != nil {
		attempt.Error = payErr.Error()
	}
	// journal even when the caller has gone away
	if err := p.journal.RecordPaymentAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		p.log.Error("failed to journal payment attempt", zap.Int("order_id", orderID), zap.Error(err))
	}
}

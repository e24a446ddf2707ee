package ordering

import (
	"context"
	"errors"
	"fmt"

	"tabble/internal/models"

	"go.uber.org/zap"
)

// ErrNotCancellable is returned for orders the chef has already accepted
var ErrNotCancellable = errors.New("order can no longer be cancelled")

// OrderCanceler cancels orders on the server
type OrderCanceler interface {
	CancelOrder(ctx context.Context, orderID int) error
}

// Canceler cancels pending orders
type Canceler struct {
	api OrderCanceler
	log *zap.Logger
}

// NewCanceler creates a new Canceler
func NewCanceler(api OrderCanceler, log *zap.Logger) *Canceler {
	return &Canceler{api: api, log: log}
}

// Cancel cancels order if it is still pending
func (c *Canceler) Cancel(ctx context.Context, order *models.Order) error {
	if !order.CanCancel() {
		return fmt.Errorf("order %d is %s: %w", order.ID, order.Status, ErrNotCancellable)
	}
	if err := c.api.CancelOrder(ctx, order.ID); err != nil {
		return fmt.Errorf("cancel order %d: %w", order.ID, err)
	}
	c.log.Info("order cancelled", zap.Int("order_id", order.ID), zap.Int("table_number", order.TableNumber))
	return nil
}

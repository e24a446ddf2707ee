// Package ordering submits carts as orders, cancels them and settles them.
package ordering

import (
	"context"
	"fmt"

	"tabble/internal/cart"
	"tabble/internal/models"
	"tabble/internal/monitoring"

	"go.uber.org/zap"
)

// Identity identifies who is ordering and where
type Identity struct {
	TableNumber int
	UniqueID    string
	PersonID    int
}

// Validate checks the identity before anything is sent to the server
func (id Identity) Validate() error {
	if id.TableNumber <= 0 {
		return models.NewValidationError("table_number", "table number must be positive, got %d", id.TableNumber)
	}
	if id.UniqueID == "" {
		return models.NewValidationError("unique_id", "unique id is required")
	}
	return nil
}

// OrderCreator submits new orders
type OrderCreator interface {
	CreateOrder(ctx context.Context, order models.NewOrder, personID int) (*models.Order, error)
}

// Placer turns the cart into an order
type Placer struct {
	api       OrderCreator
	log       *zap.Logger
	collector *monitoring.Collector
}

// NewPlacer creates a new Placer
func NewPlacer(api OrderCreator, log *zap.Logger, collector *monitoring.Collector) *Placer {
	return &Placer{api: api, log: log, collector: collector}
}

// Place submits the cart's items in position order. The cart is cleared only
// when the server accepted the order.
func (p *Placer) Place(ctx context.Context, c *cart.Cart, id Identity) (*models.Order, error) {
	if c.IsEmpty() {
		return nil, models.NewValidationError("items", "cart is empty")
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}

	sorted := c.Sorted()
	submission := models.NewOrder{
		TableNumber: id.TableNumber,
		UniqueID:    id.UniqueID,
		Items:       make([]models.NewOrderItem, 0, len(sorted)),
	}
	for _, item := range sorted {
		submission.Items = append(submission.Items, models.NewOrderItem{
			DishID:   item.DishID,
			Quantity: item.Quantity,
			Remarks:  item.Remarks,
		})
	}

	order, err := p.api.CreateOrder(ctx, submission, id.PersonID)
	p.collector.OrderPlaced(err)
	if err != nil {
		p.log.Warn("order placement failed",
			zap.Int("table_number", id.TableNumber),
			zap.Int("person_id", id.PersonID),
			zap.Error(err))
		return nil, fmt.Errorf("place order: %w", err)
	}

	c.Clear()
	p.log.Info("order placed",
		zap.Int("order_id", order.ID),
		zap.Int("table_number", id.TableNumber),
		zap.Int("items", len(submission.Items)))
	return order, nil
}

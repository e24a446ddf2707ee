package poller

import (
	"time"

	"tabble/internal/models"
)

// Snapshot is the derived view of one poll
type Snapshot struct {
	Orders             []models.Order
	TableUnpaid        []models.Order
	Current            *models.Order
	PaymentEligible    []models.Order
	HasEverPlacedOrder bool
	Loyalty            models.LoyaltyDiscount
	FetchedAt          time.Time
}

// Derive computes the table's view from a person's orders. orders are
// expected most recent first, as the server returns them.
func Derive(orders []models.Order, tableNumber int) Snapshot {
	snapshot := Snapshot{
		Orders:          orders,
		TableUnpaid:     make([]models.Order, 0),
		PaymentEligible: make([]models.Order, 0),
	}

	for _, order := range orders {
		if order.TableNumber != tableNumber {
			continue
		}
		snapshot.HasEverPlacedOrder = true
		if order.Status.IsSettled() {
			continue
		}
		snapshot.TableUnpaid = append(snapshot.TableUnpaid, order)
		if order.Status == models.OrderStatusCompleted {
			snapshot.PaymentEligible = append(snapshot.PaymentEligible, order)
		}
	}

	if len(snapshot.TableUnpaid) > 0 {
		current := snapshot.TableUnpaid[0]
		snapshot.Current = &current
	}
	return snapshot
}

package session

import (
	"tabble/internal/billing"
	"tabble/internal/cart"
	"tabble/internal/flow"
	"tabble/internal/models"
)

// View is everything the ordering screen renders for one table
type View struct {
	SessionID            string                 `json:"session_id"`
	TableNumber          int                    `json:"table_number"`
	Table                *models.Table          `json:"table,omitempty"`
	PersonID             int                    `json:"person_id"`
	UniqueID             string                 `json:"unique_id"`
	Phase                flow.Phase             `json:"phase"`
	SelectedDish         *models.Dish           `json:"selected_dish,omitempty"`
	Cart                 []cart.Item            `json:"cart"`
	CartTotal            string                 `json:"cart_total"`
	CurrentOrder         *models.Order          `json:"current_order,omitempty"`
	CurrentStatus        string                 `json:"current_status,omitempty"`
	TableOrders          []models.Order         `json:"table_orders"`
	PaymentEligible      []models.Order         `json:"payment_eligible"`
	Loyalty              models.LoyaltyDiscount `json:"loyalty"`
	Bill                 *billing.View          `json:"bill,omitempty"`
	HasEverPlacedOrder   bool                   `json:"has_ever_placed_order"`
	PlacedOrderInSession bool                   `json:"placed_order_in_session"`
	LastPayment          *PaymentSummary        `json:"last_payment,omitempty"`
	Notice               *Notice                `json:"notice,omitempty"`
}

// PaymentSummary reports the outcome of the last payment batch
type PaymentSummary struct {
	BatchID      string `json:"batch_id"`
	SuccessCount int    `json:"success_count"`
	ErrorCount   int    `json:"error_count"`
	Message      string `json:"message"`
}

package models

// Person is a customer known to the restaurant
type Person struct {
	ID         int       `json:"id"`
	Username   string    `json:"username"`
	VisitCount int       `json:"visit_count"`
	LastVisit  Timestamp `json:"last_visit"`
}

// Table represents the occupancy record of a restaurant table
type Table struct {
	TableNumber    int  `json:"table_number"`
	IsOccupied     bool `json:"is_occupied"`
	CurrentOrderID *int `json:"current_order_id,omitempty"`
}

package client

import (
	"context"
	"fmt"
	"net/http"

	"tabble/internal/models"
)

// GetTable retrieves the occupancy of a table
func (c *Client) GetTable(ctx context.Context, tableNumber int) (*models.Table, error) {
	var table models.Table
	path := fmt.Sprintf("/api/tables/number/%d", tableNumber)
	if err := c.do(ctx, "get_table", http.MethodGet, path, nil, nil, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

// SetTableOccupied marks a table as taken
func (c *Client) SetTableOccupied(ctx context.Context, tableNumber int) error {
	path := fmt.Sprintf("/api/tables/number/%d/occupy", tableNumber)
	return c.do(ctx, "set_table_occupied", http.MethodPut, path, nil, nil, nil)
}

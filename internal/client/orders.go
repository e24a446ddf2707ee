package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"tabble/internal/models"
)

// GetPerson retrieves a customer by id
func (c *Client) GetPerson(ctx context.Context, personID int) (*models.Person, error) {
	var person models.Person
	path := fmt.Sprintf("%s/person/%d", customerAPI, personID)
	if err := c.do(ctx, "get_person", http.MethodGet, path, nil, nil, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

// GetPersonOrders retrieves every order of a customer, most recent first
func (c *Client) GetPersonOrders(ctx context.Context, personID int) ([]models.Order, error) {
	var orders []models.Order
	path := fmt.Sprintf("%s/person/%d/orders", customerAPI, personID)
	if err := c.do(ctx, "get_person_orders", http.MethodGet, path, nil, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder retrieves a specific order by id
func (c *Client) GetOrder(ctx context.Context, orderID int) (*models.Order, error) {
	var order models.Order
	path := fmt.Sprintf("%s/orders/%d", customerAPI, orderID)
	if err := c.do(ctx, "get_order", http.MethodGet, path, nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder submits a new order. A zero personID leaves the order anonymous.
func (c *Client) CreateOrder(ctx context.Context, order models.NewOrder, personID int) (*models.Order, error) {
	var query url.Values
	if personID > 0 {
		query = url.Values{"person_id": {strconv.Itoa(personID)}}
	}
	var created models.Order
	if err := c.do(ctx, "create_order", http.MethodPost, customerAPI+"/orders", query, order, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// RequestPayment settles a completed order. The server refuses orders that
// are not yet completed.
func (c *Client) RequestPayment(ctx context.Context, orderID int) error {
	path := fmt.Sprintf("%s/orders/%d/payment", customerAPI, orderID)
	return c.do(ctx, "request_payment", http.MethodPut, path, nil, nil, nil)
}

// CancelOrder cancels an order by id. The server refuses anything but pending orders.
func (c *Client) CancelOrder(ctx context.Context, orderID int) error {
	path := fmt.Sprintf("%s/orders/%d/cancel", customerAPI, orderID)
	return c.do(ctx, "cancel_order", http.MethodPut, path, nil, nil, nil)
}

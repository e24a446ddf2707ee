package client

import (
	"context"
	"net/http"
	"net/url"

	"tabble/internal/models"
)

const customerAPI = "/api/customer/api"

// GetMenu retrieves the visible dishes, optionally limited to one category
func (c *Client) GetMenu(ctx context.Context, category string) ([]models.Dish, error) {
	var query url.Values
	if category != "" {
		query = url.Values{"category": {category}}
	}
	var dishes []models.Dish
	if err := c.do(ctx, "get_menu", http.MethodGet, customerAPI+"/menu", query, nil, &dishes); err != nil {
		return nil, err
	}
	return dishes, nil
}

// GetCategories retrieves the categories of visible dishes
func (c *Client) GetCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.do(ctx, "get_categories", http.MethodGet, customerAPI+"/categories", nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetOffers retrieves dishes with an automatic discount
func (c *Client) GetOffers(ctx context.Context) ([]models.Dish, error) {
	var dishes []models.Dish
	if err := c.do(ctx, "get_offers", http.MethodGet, customerAPI+"/offers", nil, nil, &dishes); err != nil {
		return nil, err
	}
	return dishes, nil
}

// GetSpecials retrieves the chef's specials
func (c *Client) GetSpecials(ctx context.Context) ([]models.Dish, error) {
	var dishes []models.Dish
	if err := c.do(ctx, "get_specials", http.MethodGet, customerAPI+"/specials", nil, nil, &dishes); err != nil {
		return nil, err
	}
	return dishes, nil
}

// LoadMenu fetches categories, dishes, offers and specials
func (c *Client) LoadMenu(ctx context.Context) (*models.Menu, error) {
	categories, err := c.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	dishes, err := c.GetMenu(ctx, "")
	if err != nil {
		return nil, err
	}
	offers, err := c.GetOffers(ctx)
	if err != nil {
		return nil, err
	}
	specials, err := c.GetSpecials(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Menu{
		Categories: categories,
		Dishes:     dishes,
		Offers:     offers,
		Specials:   specials,
	}, nil
}

package models

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Dish represents a dish on the menu
type Dish struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Discount    decimal.Decimal `json:"discount"`
	IsOffer     int             `json:"is_offer"`
	IsSpecial   int             `json:"is_special"`
	Visibility  int             `json:"visibility"`
	ImagePath   string          `json:"image_path,omitempty"`
}

// Offer reports whether the dish carries an automatic percentage discount
func (d *Dish) Offer() bool {
	return d.IsOffer == 1
}

// Special reports whether the dish is flagged as a chef's special
func (d *Dish) Special() bool {
	return d.IsSpecial == 1
}

// EffectivePrice returns the price a customer pays for one unit
func (d *Dish) EffectivePrice() decimal.Decimal {
	if !d.Offer() {
		return d.Price
	}
	return DiscountedPrice(d.Price, d.Discount)
}

// DiscountedPrice applies a percentage discount to a price
func DiscountedPrice(price, percent decimal.Decimal) decimal.Decimal {
	return price.Sub(price.Mul(percent).Div(hundred))
}

// Menu groups everything the customer menu screen shows
type Menu struct {
	Categories []string `json:"categories"`
	Dishes     []Dish   `json:"dishes"`
	Offers     []Dish   `json:"offers"`
	Specials   []Dish   `json:"specials"`
}

// Find returns the dish with the given id from any section of the menu
func (m *Menu) Find(id int) (Dish, bool) {
	for _, section := range [][]Dish{m.Dishes, m.Offers, m.Specials} {
		for _, d := range section {
			if d.ID == id {
				return d, true
			}
		}
	}
	return Dish{}, false
}

// InCategory returns the dishes of one category, or all dishes when category is empty
func (m *Menu) InCategory(category string) []Dish {
	if category == "" {
		return m.Dishes
	}
	dishes := make([]Dish, 0)
	for _, d := range m.Dishes {
		if d.Category == category {
			dishes = append(dishes, d)
		}
	}
	return dishes
}

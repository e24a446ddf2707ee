// Package cart holds the dishes a table has picked but not yet ordered.
package cart

import (
	"sort"

	"tabble/internal/models"

	"github.com/shopspring/decimal"
)

// Direction moves a cart line one slot up or down
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Item is one line of the cart
type Item struct {
	DishID    int             `json:"dish_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Remarks   string          `json:"remarks"`
	Position  int             `json:"position"`
	IsOffer   bool            `json:"is_offer"`
	Discount  decimal.Decimal `json:"discount"`
}

// EffectivePrice returns the unit price after any offer discount
func (i Item) EffectivePrice() decimal.Decimal {
	if !i.IsOffer {
		return i.UnitPrice
	}
	return models.DiscountedPrice(i.UnitPrice, i.Discount)
}

// LineTotal returns effective price times quantity
func (i Item) LineTotal() decimal.Decimal {
	return i.EffectivePrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an ordered list of items. It is not safe for concurrent use;
// the owning session serialises access.
type Cart struct {
	items []Item
}

// New creates an empty cart
func New() *Cart {
	return &Cart{items: make([]Item, 0)}
}

// Add appends an item at the end of the cart
func (c *Cart) Add(item Item) error {
	if item.Quantity < 1 {
		return models.NewValidationError("quantity", "must be at least 1, got %d", item.Quantity)
	}
	if item.DishID <= 0 {
		return models.NewValidationError("dish_id", "must be positive, got %d", item.DishID)
	}
	item.Position = len(c.items) + 1
	c.items = append(c.items, item)
	return nil
}

// AddDish appends a menu dish with the given quantity and remarks
func (c *Cart) AddDish(dish models.Dish, quantity int, remarks string) error {
	return c.Add(Item{
		DishID:    dish.ID,
		Name:      dish.Name,
		UnitPrice: dish.Price,
		Quantity:  quantity,
		Remarks:   remarks,
		IsOffer:   dish.Offer(),
		Discount:  dish.Discount,
	})
}

// Remove deletes the item at index and renumbers the rest
func (c *Cart) Remove(index int) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	c.renumber()
	return nil
}

// Reorder swaps the item at index with its neighbour in the given direction.
// Moving the first item up or the last item down leaves the cart unchanged.
func (c *Cart) Reorder(index int, dir Direction) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}

	var target int
	switch dir {
	case Up:
		target = index - 1
	case Down:
		target = index + 1
	default:
		return models.NewValidationError("direction", "must be %q or %q, got %q", Up, Down, dir)
	}
	if target < 0 || target >= len(c.items) {
		return nil
	}

	c.items[index], c.items[target] = c.items[target], c.items[index]
	c.renumber()
	return nil
}

// Items returns a copy of the cart lines in cart order
func (c *Cart) Items() []Item {
	items := make([]Item, len(c.items))
	copy(items, c.items)
	return items
}

// Clone returns an independent copy of the cart
func (c *Cart) Clone() *Cart {
	return &Cart{items: c.Items()}
}

// Sorted returns a copy of the cart lines ordered by position
func (c *Cart) Sorted() []Item {
	items := c.Items()
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return items
}

// Total returns the cart value rounded to two decimals
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.LineTotal())
	}
	return total.Round(2)
}

// Len returns the number of lines in the cart
func (c *Cart) Len() int {
	return len(c.items)
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.items = make([]Item, 0)
}

func (c *Cart) checkIndex(index int) error {
	if index < 0 || index >= len(c.items) {
		return models.NewValidationError("index", "%d out of range [0, %d)", index, len(c.items))
	}
	return nil
}

func (c *Cart) renumber() {
	for i := range c.items {
		c.items[i].Position = i + 1
	}
}

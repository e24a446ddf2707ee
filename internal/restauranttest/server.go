// Package restauranttest provides an in-memory restaurant API for tests.
package restauranttest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"tabble/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var loyaltyTiers = []struct {
	visits  int
	percent int64
}{
	{20, 20},
	{10, 15},
	{5, 10},
	{3, 5},
}

var offerTiers = []struct {
	minimum int64
	amount  int64
}{
	{150, 25},
	{100, 15},
	{50, 5},
}

// Server is a fake restaurant API backed by memory
type Server struct {
	URL string

	mu          sync.Mutex
	http        *httptest.Server
	menu        models.Menu
	people      map[int]*models.Person
	orders      []*models.Order
	nextOrderID int
	tables      map[int]*models.Table
	failPayment map[int]bool
	offersDown  bool
	menuDown    bool
	orderGate   chan struct{}
	heldOrders  int
	calls       map[string]int
}

// New starts a fake API with a small menu. It is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		menu:        defaultMenu(),
		people:      make(map[int]*models.Person),
		nextOrderID: 1,
		tables:      make(map[int]*models.Table),
		failPayment: make(map[int]bool),
		calls:       make(map[string]int),
	}
	s.http = httptest.NewServer(s.router())
	s.URL = s.http.URL
	t.Cleanup(s.http.Close)
	return s
}

func defaultMenu() models.Menu {
	dishes := []models.Dish{
		{ID: 1, Name: "Paneer Tikka", Category: "Starters", Price: decimal.NewFromInt(120), Visibility: 1},
		{ID: 2, Name: "Veg Biryani", Category: "Mains", Price: decimal.NewFromInt(250), Discount: decimal.NewFromInt(10), IsOffer: 1, Visibility: 1},
		{ID: 3, Name: "Butter Naan", Category: "Breads", Price: decimal.NewFromInt(40), Visibility: 1},
		{ID: 4, Name: "Gulab Jamun", Category: "Desserts", Price: decimal.NewFromInt(60), IsSpecial: 1, Visibility: 1},
	}
	return models.Menu{
		Categories: []string{"Starters", "Mains", "Breads", "Desserts"},
		Dishes:     dishes,
		Offers:     []models.Dish{dishes[1]},
		Specials:   []models.Dish{dishes[3]},
	}
}

// AddPerson registers a customer with a visit count
func (s *Server) AddPerson(id, visits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people[id] = &models.Person{ID: id, Username: fmt.Sprintf("guest%d", id), VisitCount: visits}
}

// SetStatus moves an order to a status, as the kitchen would
func (s *Server) SetStatus(orderID int, status models.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order := s.findLocked(orderID); order != nil {
		order.Status = status
		order.UpdatedAt = models.Timestamp{Time: time.Now().UTC()}
	}
}

// FailPaymentFor makes payment of one order fail with a server error
func (s *Server) FailPaymentFor(orderID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPayment[orderID] = true
}

// SetOffersDown makes the selection offer endpoint fail
func (s *Server) SetOffersDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offersDown = down
}

// SetMenuDown makes the menu endpoints fail
func (s *Server) SetMenuDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menuDown = down
}

// HoldOrders makes order creation wait until release is called
func (s *Server) HoldOrders() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.orderGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.orderGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// HeldOrders returns how many order requests are waiting on HoldOrders
func (s *Server) HeldOrders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heldOrders
}

// Orders returns a copy of every order, oldest first
func (s *Server) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, *o)
	}
	return orders
}

// Table returns the occupancy record of a table
func (s *Server) Table(number int) models.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[number]; ok {
		return *t
	}
	return models.Table{TableNumber: number}
}

// Calls returns how many requests hit a route pattern
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Next()
		s.mu.Lock()
		s.calls[c.Request.Method+" "+c.FullPath()]++
		s.mu.Unlock()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	customer := router.Group("/api/customer/api")
	{
		customer.GET("/menu", s.getMenu)
		customer.GET("/categories", s.getCategories)
		customer.GET("/offers", s.getOffers)
		customer.GET("/specials", s.getSpecials)
		customer.GET("/person/:id", s.getPerson)
		customer.GET("/person/:id/orders", s.getPersonOrders)
		customer.POST("/orders", s.createOrder)
		customer.GET("/orders/:id", s.getOrder)
		customer.PUT("/orders/:id/payment", s.payOrder)
		customer.PUT("/orders/:id/cancel", s.cancelOrder)
	}

	router.GET("/api/loyalty/discount/:visits", s.getLoyaltyDiscount)
	router.GET("/api/selection-offers/discount", s.getSelectionOffer)
	router.GET("/api/tables/number/:n", s.getTable)
	router.PUT("/api/tables/number/:n/occupy", s.occupyTable)
	return router
}

func detail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"detail": message})
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return v, true
}

func (s *Server) getMenu(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.menuDown {
		detail(c, http.StatusServiceUnavailable, "menu unavailable")
		return
	}
	c.JSON(http.StatusOK, s.menu.InCategory(c.Query("category")))
}

func (s *Server) getCategories(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.menuDown {
		detail(c, http.StatusServiceUnavailable, "menu unavailable")
		return
	}
	c.JSON(http.StatusOK, s.menu.Categories)
}

func (s *Server) getOffers(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.menu.Offers)
}

func (s *Server) getSpecials(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.menu.Specials)
}

func (s *Server) getPerson(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	person, found := s.people[id]
	if !found {
		detail(c, http.StatusNotFound, "Person not found")
		return
	}
	c.JSON(http.StatusOK, person)
}

func (s *Server) getPersonOrders(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]models.Order, 0)
	for i := len(s.orders) - 1; i >= 0; i-- {
		if o := s.orders[i]; o.PersonID != nil && *o.PersonID == id {
			orders = append(orders, *o)
		}
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) createOrder(c *gin.Context) {
	var submission models.NewOrder
	if err := c.ShouldBindJSON(&submission); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if len(submission.Items) == 0 {
		detail(c, http.StatusBadRequest, "Order must contain at least one item")
		return
	}

	s.mu.Lock()
	if gate := s.orderGate; gate != nil {
		s.heldOrders++
		s.mu.Unlock()
		<-gate
		s.mu.Lock()
		s.heldOrders--
	}
	defer s.mu.Unlock()

	now := models.Timestamp{Time: time.Now().UTC()}
	order := &models.Order{
		ID:          s.nextOrderID,
		TableNumber: submission.TableNumber,
		UniqueID:    submission.UniqueID,
		Status:      models.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if raw := c.Query("person_id"); raw != "" {
		if personID, err := strconv.Atoi(raw); err == nil {
			order.PersonID = &personID
		}
	}
	for i, item := range submission.Items {
		dish, found := s.menu.Find(item.DishID)
		if !found {
			detail(c, http.StatusNotFound, fmt.Sprintf("Dish %d not found", item.DishID))
			return
		}
		order.Items = append(order.Items, models.OrderItem{
			ID:       i + 1,
			DishID:   item.DishID,
			Dish:     &dish,
			Quantity: item.Quantity,
			Remarks:  item.Remarks,
		})
	}
	s.nextOrderID++
	s.orders = append(s.orders, order)
	c.JSON(http.StatusOK, order)
}

func (s *Server) getOrder(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.findLocked(id)
	if order == nil {
		detail(c, http.StatusNotFound, "Order not found")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) payOrder(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.findLocked(id)
	switch {
	case order == nil:
		detail(c, http.StatusNotFound, "Order not found")
	case s.failPayment[id]:
		detail(c, http.StatusInternalServerError, "Payment processing failed")
	case order.Status != models.OrderStatusCompleted:
		detail(c, http.StatusBadRequest, "Order must be completed before payment")
	default:
		order.Status = models.OrderStatusPaid
		order.UpdatedAt = models.Timestamp{Time: time.Now().UTC()}
		if person := s.personOfLocked(order); person != nil {
			person.VisitCount++
		}
		c.JSON(http.StatusOK, order)
	}
}

func (s *Server) cancelOrder(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.findLocked(id)
	switch {
	case order == nil:
		detail(c, http.StatusNotFound, "Order not found")
	case order.Status != models.OrderStatusPending:
		detail(c, http.StatusBadRequest, "Order cannot be cancelled")
	default:
		order.Status = models.OrderStatusCancelled
		c.JSON(http.StatusOK, gin.H{"message": "Order cancelled successfully"})
	}
}

func (s *Server) getLoyaltyDiscount(c *gin.Context) {
	visits, ok := intParam(c, "visits")
	if !ok {
		return
	}
	for _, tier := range loyaltyTiers {
		if visits >= tier.visits {
			c.JSON(http.StatusOK, models.LoyaltyDiscount{
				Percentage: decimal.NewFromInt(tier.percent),
				Message:    fmt.Sprintf("%d%% loyalty discount for %d visits", tier.percent, visits),
			})
			return
		}
	}
	c.JSON(http.StatusOK, models.NoLoyaltyDiscount())
}

func (s *Server) getSelectionOffer(c *gin.Context) {
	s.mu.Lock()
	down := s.offersDown
	s.mu.Unlock()
	if down {
		detail(c, http.StatusServiceUnavailable, "offers unavailable")
		return
	}

	amount, err := decimal.NewFromString(c.Query("order_amount"))
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "invalid order_amount")
		return
	}
	for _, tier := range offerTiers {
		if amount.GreaterThanOrEqual(decimal.NewFromInt(tier.minimum)) {
			c.JSON(http.StatusOK, models.SelectionOfferDiscount{
				Amount:  decimal.NewFromInt(tier.amount),
				Message: fmt.Sprintf("₹%d off on orders above ₹%d", tier.amount, tier.minimum),
			})
			return
		}
	}
	c.JSON(http.StatusOK, models.SelectionOfferDiscount{Amount: decimal.Zero, Message: "No special offer available"})
}

func (s *Server) getTable(c *gin.Context) {
	n, ok := intParam(c, "n")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table, found := s.tables[n]
	if !found {
		detail(c, http.StatusNotFound, "Table not found")
		return
	}
	c.JSON(http.StatusOK, table)
}

func (s *Server) occupyTable(c *gin.Context) {
	n, ok := intParam(c, "n")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table, found := s.tables[n]
	if !found {
		table = &models.Table{TableNumber: n}
		s.tables[n] = table
	}
	table.IsOccupied = true
	c.JSON(http.StatusOK, table)
}

func (s *Server) findLocked(id int) *models.Order {
	for _, o := range s.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (s *Server) personOfLocked(order *models.Order) *models.Person {
	if order.PersonID == nil {
		return nil
	}
	return s.people[*order.PersonID]
}

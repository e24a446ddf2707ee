package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"tabble/internal/cart"
	"tabble/internal/client"
	"tabble/internal/flow"
	"tabble/internal/models"
	"tabble/internal/ordering"
	"tabble/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionKey = "session"

type startSessionRequest struct {
	TableNumber int    `json:"table_number" binding:"required,min=1"`
	UserID      int    `json:"user_id" binding:"min=0"`
	UniqueID    string `json:"unique_id"`
}

type startSessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	View      session.View `json:"view"`
}

type addToCartRequest struct {
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Remarks  string `json:"remarks"`
}

type moveItemRequest struct {
	Direction cart.Direction `json:"direction" binding:"required,oneof=up down"`
}

type paymentResponse struct {
	Result session.PaymentSummary `json:"result"`
	View   session.View           `json:"view"`
}

func current(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func (s *Server) handleStartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.start(c.Request.Context(), ordering.Identity{
		TableNumber: req.TableNumber,
		UniqueID:    req.UniqueID,
		PersonID:    req.UserID,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	token, expires, err := s.auth.Issue(sess.ID(), req.TableNumber, req.UserID)
	if err != nil {
		sess.Close()
		s.writeError(c, err)
		return
	}
	s.register(sess, expires)

	c.JSON(http.StatusCreated, startSessionResponse{Token: token, ExpiresAt: expires, View: sess.View()})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.GetMetrics())
}

func (s *Server) handleMenu(c *gin.Context) {
	c.JSON(http.StatusOK, current(c).Menu(c.Query("category")))
}

func (s *Server) handleView(c *gin.Context) {
	c.JSON(http.StatusOK, current(c).View())
}

func (s *Server) handleCloseSession(c *gin.Context) {
	if sess, ok := s.remove(current(c).ID()); ok {
		sess.Close()
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSelectDish(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	s.respond(c, current(c).SelectDish(id))
}

func (s *Server) handleAddToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.respond(c, current(c).AddSelected(req.Quantity, req.Remarks))
}

func (s *Server) handleOpenCart(c *gin.Context) {
	s.respond(c, current(c).OpenCart())
}

func (s *Server) handleRemoveItem(c *gin.Context) {
	index, ok := intParam(c, "index")
	if !ok {
		return
	}
	s.respond(c, current(c).RemoveItem(index))
}

func (s *Server) handleMoveItem(c *gin.Context) {
	index, ok := intParam(c, "index")
	if !ok {
		return
	}
	var req moveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.respond(c, current(c).MoveItem(index, req.Direction))
}

func (s *Server) handleDismiss(c *gin.Context) {
	s.respond(c, current(c).Dismiss())
}

func (s *Server) handlePlaceOrder(c *gin.Context) {
	sess := current(c)
	order, err := sess.PlaceOrder(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order, "view": sess.View()})
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	sess := current(c)
	s.respond(c, sess.CancelOrder(c.Request.Context(), id))
}

func (s *Server) handleOpenPayment(c *gin.Context) {
	sess := current(c)
	bill, err := sess.OpenPayment(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bill": bill, "view": sess.View()})
}

func (s *Server) handleCompletePayment(c *gin.Context) {
	sess := current(c)
	result, err := sess.CompletePayment(c.Request.Context())

	var partial *ordering.PartialFailure
	if err != nil && !errors.As(err, &partial) {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, paymentResponse{
		Result: session.PaymentSummary{
			BatchID:      result.BatchID,
			SuccessCount: result.SuccessCount,
			ErrorCount:   result.ErrorCount,
			Message:      result.Message(),
		},
		View: sess.View(),
	})
}

func (s *Server) handlePayments(c *gin.Context) {
	attempts, err := current(c).Payments(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempts)
}

func (s *Server) handleFeedbackDone(c *gin.Context) {
	s.respond(c, current(c).FeedbackDone())
}

// respond writes the session view, or the error an action failed with
func (s *Server) respond(c *gin.Context, err error) {
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, current(c).View())
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	body := gin.H{"error": err.Error()}
	if detail := client.DetailOf(err); detail != "" {
		body["detail"] = detail
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	var validation *models.ValidationError
	var apiErr *client.Error
	switch {
	case errors.As(err, &validation), errors.Is(err, session.ErrNoDishSelected):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrUnknownOrder):
		return http.StatusNotFound
	case errors.Is(err, ordering.ErrNotCancellable),
		errors.Is(err, flow.ErrInvalidTransition),
		errors.Is(err, session.ErrNoEligibleOrders):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed), errors.Is(err, flow.ErrClosed):
		return http.StatusGone
	case errors.As(err, &apiErr):
		switch apiErr.Kind {
		case client.KindNotFound:
			return http.StatusNotFound
		case client.KindRejected:
			return http.StatusConflict
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

// Package api exposes table sessions over HTTP and websockets.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tabble/internal/monitoring"
	"tabble/internal/ordering"
	"tabble/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Starter opens a session for a table
type Starter func(ctx context.Context, identity ordering.Identity) (*session.Session, error)

// Server handles the session API
type Server struct {
	router  *gin.Engine
	start   Starter
	auth    *Authenticator
	monitor *monitoring.Monitor
	log     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]entry

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// entry is an open session and the expiry of the token issued for it
type entry struct {
	session *session.Session
	expires time.Time
}

// NewServer creates a new session API server
func NewServer(start Starter, auth *Authenticator, monitor *monitoring.Monitor, log *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:   router,
		start:    start,
		auth:     auth,
		monitor:  monitor,
		log:      log,
		sessions: make(map[string]entry),
		stop:     make(chan struct{}),
	}
	router.Use(s.timing())

	s.setupRoutes()

	s.wg.Add(1)
	go s.reap(reapInterval(auth.ttl))
	return s
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.count()})
	})

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/sessions", s.handleStartSession)
		v1.GET("/metrics", s.handleMetrics)
	}

	authed := s.router.Group("/", s.auth.Middleware(), s.requireSession())
	{
		authed.GET("/ws", s.handleWebSocket)
		authed.GET("/api/v1/menu", s.handleMenu)
	}

	sess := s.router.Group("/api/v1/session", s.auth.Middleware(), s.requireSession())
	{
		sess.GET("", s.handleView)
		sess.DELETE("", s.handleCloseSession)

		sess.POST("/dishes/:id", s.handleSelectDish)
		sess.POST("/cart", s.handleAddToCart)
		sess.POST("/cart/open", s.handleOpenCart)
		sess.DELETE("/cart/items/:index", s.handleRemoveItem)
		sess.POST("/cart/items/:index/move", s.handleMoveItem)
		sess.POST("/dismiss", s.handleDismiss)

		sess.POST("/orders", s.handlePlaceOrder)
		sess.PUT("/orders/:id/cancel", s.handleCancelOrder)

		sess.POST("/payment", s.handleOpenPayment)
		sess.POST("/payment/complete", s.handleCompletePayment)
		sess.GET("/payments", s.handlePayments)
		sess.POST("/feedback/done", s.handleFeedbackDone)
	}
}

// Router returns the Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Shutdown stops the expiry reaper and closes every open session
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]entry)
	s.mu.Unlock()

	for _, e := range sessions {
		e.session.Close()
	}
}

func (s *Server) register(sess *session.Session, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID()] = entry{session: sess, expires: expires}
}

func (s *Server) lookup(id string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return e.session, ok
}

func (s *Server) remove(id string) (*session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	return e.session, ok
}

// reapInterval is how often expired sessions are looked for. A session
// outlives its token by at most this long.
func reapInterval(ttl time.Duration) time.Duration {
	if half := ttl / 2; half > 0 && half < time.Minute {
		return half
	}
	return time.Minute
}

func (s *Server) reap(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.closeExpired()
		}
	}
}

// closeExpired closes the sessions whose token has expired and returns how
// many there were
func (s *Server) closeExpired() int {
	now := s.auth.now()

	s.mu.Lock()
	var expired []*session.Session
	for id, e := range s.sessions {
		if !now.Before(e.expires) {
			expired = append(expired, e.session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		s.log.Info("closing session with expired token", zap.String("session_id", sess.ID()))
		sess.Close()
	}
	return len(expired)
}

func (s *Server) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// requireSession resolves the token's session; it runs after auth
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := c.MustGet(claimsKey).(*Claims)
		sess, ok := s.lookup(claims.SessionID)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// timing records the latency of every route in the monitor
func (s *Server) timing() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if route := c.FullPath(); route != "" && route != "/ws" {
			s.monitor.RecordDuration("http."+c.Request.Method+" "+route, time.Since(start))
		}
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"tabble/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket streams the session view to the client after every change
func (s *Server) handleWebSocket(c *gin.Context) {
	sess := current(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	views, unsubscribe := sess.Subscribe()
	log := s.log.With(zap.String("session_id", sess.ID()))

	go writePump(conn, views, log)
	go readPump(conn, unsubscribe, log)
}

// readPump drains the connection so control frames are handled and
// unsubscribes once the client goes away
func readPump(conn *websocket.Conn, unsubscribe func(), log *zap.Logger) {
	defer func() {
		unsubscribe()
		conn.Close()
	}()

	conn.SetReadLimit(4 * 1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket closed", zap.Error(err))
			}
			return
		}
	}
}

// writePump sends every view to the client and pings it periodically
func writePump(conn *websocket.Conn, views <-chan session.View, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case view, ok := <-views:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// session closed or client unsubscribed
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			data, err := json.Marshal(view)
			if err != nil {
				log.Error("failed to marshal view", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

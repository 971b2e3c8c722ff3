package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	qerrors "github.com/codequery-dev/codequery/internal/errors"
	"github.com/codequery-dev/codequery/internal/search"
)

// WebSocket connection limits.
const (
	wsWriteTimeout   = 10 * time.Second
	wsPongTimeout    = 60 * time.Second
	wsPingInterval   = 30 * time.Second
	wsMaxMessageSize = 1 << 16
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The transport carries no credentials or cookies; origin checks
	// belong to a fronting proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsMessage is the inbound WebSocket frame. Type selects the
// operation; search requests embed the canonical SearchRequest fields.
type wsMessage struct {
	Type  string `json:"type"`
	ReqID string `json:"req_id,omitempty"`
	Store string `json:"store,omitempty"`
	search.SearchRequest
}

// wsReply is the outbound frame for one request.
type wsReply struct {
	Type    string                 `json:"type"`
	ReqID   string                 `json:"req_id,omitempty"`
	Results *search.SearchResponse `json:"results,omitempty"`
	Error   *search.ErrorPayload   `json:"error,omitempty"`
	Stores  []string               `json:"stores,omitempty"`
}

// wsConn serializes concurrent writers onto one connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

// handleWebSocket upgrades the connection and serves search messages
// until the client disconnects. Each search runs in its own goroutine
// so a slow query never blocks the read loop; replies are
// fire-and-forget and correlated by req_id.
func (s *Server) handleWebSocket(c *gin.Context) {
	raw, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("ws_upgrade_failed", slog.String("error", err.Error()))
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	raw.SetReadLimit(wsMaxMessageSize)
	_ = raw.SetReadDeadline(time.Now().Add(wsPongTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	// Connection lifetime bounds every in-flight search.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go s.pingLoop(ctx, conn)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("ws_read_failed", slog.String("error", err.Error()))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			payload := search.ErrorPayloadOf(qerrors.InvalidQuery("message is not valid JSON"))
			_ = conn.writeJSON(wsReply{Type: "error", Error: &payload})
			continue
		}

		switch msg.Type {
		case "search":
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.serveWSSearch(ctx, conn, msg)
			}()
		case "stores":
			_ = conn.writeJSON(wsReply{Type: "stores", ReqID: msg.ReqID, Stores: s.engine.Stores()})
		default:
			payload := search.ErrorPayloadOf(qerrors.InvalidQuery("unknown message type: " + msg.Type))
			_ = conn.writeJSON(wsReply{Type: "error", ReqID: msg.ReqID, Error: &payload})
		}
	}
}

func (s *Server) serveWSSearch(ctx context.Context, conn *wsConn, msg wsMessage) {
	req := msg.SearchRequest
	resp, err := s.engine.Search(ctx, msg.Store, &req)
	if err != nil {
		if ctx.Err() != nil {
			// Client is gone; nobody is listening for the reply.
			return
		}
		payload := search.ErrorPayloadOf(err)
		_ = conn.writeJSON(wsReply{Type: "error", ReqID: msg.ReqID, Error: &payload})
		return
	}
	_ = conn.writeJSON(wsReply{Type: "results", ReqID: msg.ReqID, Results: resp})
}

func (s *Server) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

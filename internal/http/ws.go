package http

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/collabd/internal/collab"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// ClientMessage is the client-to-server websocket payload.
type ClientMessage struct {
	Type       string `json:"type"`
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
	Content    string `json:"content"`
}

// Client-to-server message types.
const (
	clientJoin   = "join"
	clientUpdate = "update"
	clientLeave  = "leave"
)

// wsConn adapts a websocket connection to the session manager. Gorilla
// connections allow only one concurrent writer, so sends serialize on a
// mutex.
type wsConn struct {
	id   string
	conn *websocket.Conn

	mu sync.Mutex
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{id: uuid.NewString(), conn: conn}
}

func (w *wsConn) ID() string { return w.id }

func (w *wsConn) Send(msg collab.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(msg)
}

// handleWebSocket upgrades the connection and runs the read pump. Each
// decoded message dispatches to the session manager; any read error,
// including a clean close, removes the connection from all sessions.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}

	wc := newWSConn(conn)
	logger := s.logger.With(zap.String("connection_id", wc.ID()))
	logger.Debug("websocket connected")

	defer func() {
		s.sessions.Leave(wc)
		conn.Close()
		logger.Debug("websocket disconnected")
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return nil
		}

		var msg ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Warn("invalid websocket message", zap.Error(err))
			if err := wc.Send(collab.Message{Type: collab.MessageError, Message: "invalid message"}); err != nil {
				return nil
			}
			continue
		}

		s.dispatch(wc, msg, logger)
	}
}

// dispatch routes one client message. Updates run against the server's base
// context so a disconnect mid-write cannot abandon a half-applied update.
func (s *Server) dispatch(wc *wsConn, msg ClientMessage, logger *zap.Logger) {
	switch msg.Type {
	case clientJoin:
		if err := s.sessions.Join(s.baseCtx, wc, msg.DocumentID, msg.UserID); err != nil {
			logger.Info("join rejected",
				zap.String("document_id", msg.DocumentID),
				zap.Error(err))
		}
	case clientUpdate:
		if err := s.sessions.SubmitUpdate(s.baseCtx, wc, msg.DocumentID, msg.UserID, msg.Content); err != nil {
			logger.Info("update rejected",
				zap.String("document_id", msg.DocumentID),
				zap.Error(err))
		}
	case clientLeave:
		s.sessions.Leave(wc)
	default:
		logger.Warn("unknown websocket message type", zap.String("type", msg.Type))
		_ = wc.Send(collab.Message{Type: collab.MessageError, Message: "unknown message type"})
	}
}

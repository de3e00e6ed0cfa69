package app

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"docpad/api/internal/content"
	"docpad/api/internal/rbac"
)

const (
	liveSnapshot = "snapshot"
	liveSaved    = "saved"
	liveDeleted  = "deleted"
	liveError    = "error"
	livePong     = "pong"

	liveSendBuffer   = 32
	liveWriteTimeout = 10 * time.Second
	liveSaveTimeout  = 15 * time.Second
)

type liveMessage struct {
	Type       string `json:"type"`
	DocumentID string `json:"documentId,omitempty"`
	Value      string `json:"value,omitempty"`
	UpdatedBy  string `json:"updatedBy,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// liveClientMessage is a change event from an editing surface, or a ping.
type liveClientMessage struct {
	Type    string         `json:"type"`
	Content *string        `json:"content"`
	Delta   *content.Delta `json:"delta"`
}

// liveHub fans saved values out to every connection watching a document.
type liveHub struct {
	mu    sync.Mutex
	rooms map[string]map[*liveConn]struct{}
	gauge prometheus.Gauge
}

func newLiveHub(gauge prometheus.Gauge) *liveHub {
	return &liveHub{rooms: make(map[string]map[*liveConn]struct{}), gauge: gauge}
}

func (h *liveHub) join(c *liveConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.documentID] == nil {
		h.rooms[c.documentID] = make(map[*liveConn]struct{})
	}
	h.rooms[c.documentID][c] = struct{}{}
	if h.gauge != nil {
		h.gauge.Inc()
	}
}

// leave removes c and closes its queue. Broadcasts hold the same lock, so
// nothing is sent on a closed queue.
func (h *liveHub) leave(c *liveConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[c.documentID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.rooms, c.documentID)
	}
	close(c.send)
	if h.gauge != nil {
		h.gauge.Dec()
	}
}

func (h *liveHub) broadcast(documentID string, msg liveMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[documentID] {
		c.enqueue(msg)
	}
}

func (h *liveHub) count(documentID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[documentID])
}

type liveConn struct {
	ws         *websocket.Conn
	documentID string
	send       chan liveMessage
}

// enqueue drops the message when the client is not keeping up.
func (c *liveConn) enqueue(msg liveMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *liveConn) writeLoop() {
	for msg := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err := c.ws.WriteJSON(msg); err != nil {
			return
		}
	}
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

func newUpgrader(corsOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origin == "null" || corsOrigin == "*" {
				return true
			}
			for _, allowed := range strings.Split(corsOrigin, ",") {
				if strings.TrimSpace(allowed) == origin {
					return true
				}
			}
			return false
		},
	}
}

// handleLive streams saved values of one document. Editors may push change
// events over the same connection; each is saved like a PUT.
func (s *HTTPServer) handleLive(w http.ResponseWriter, r *http.Request, session Session, documentID string) {
	doc, err := s.service.store.GetDocument(r.Context(), documentID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("document_id", documentID).Msg("websocket upgrade")
		return
	}
	defer ws.Close()
	// The server's read timeout would otherwise end idle connections.
	_ = ws.SetReadDeadline(time.Time{})

	c := &liveConn{ws: ws, documentID: documentID, send: make(chan liveMessage, liveSendBuffer)}
	hub := s.service.live
	hub.join(c)
	defer hub.leave(c)
	go c.writeLoop()

	c.enqueue(liveMessage{Type: liveSnapshot, DocumentID: doc.ID, Value: doc.Value, UpdatedBy: doc.UpdatedBy})

	for {
		var msg liveClientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Str("document_id", documentID).Msg("live connection closed")
			}
			return
		}
		if msg.Type == "ping" {
			c.enqueue(liveMessage{Type: livePong, DocumentID: documentID})
			continue
		}
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			c.enqueue(liveMessage{Type: liveError, DocumentID: documentID, Code: "FORBIDDEN", Error: "Read-only session"})
			continue
		}
		if msg.Content == nil && msg.Delta == nil {
			c.enqueue(liveMessage{Type: liveError, DocumentID: documentID, Code: "VALIDATION_ERROR", Error: "content or delta is required"})
			continue
		}

		ctx, cancel := context.WithTimeout(r.Context(), liveSaveTimeout)
		_, err := s.service.SaveDocument(ctx, documentID, SaveInput{Content: msg.Content, Delta: msg.Delta}, session.UserName)
		cancel()
		if err != nil {
			_, code, message, _ := mapError(err)
			c.enqueue(liveMessage{Type: liveError, DocumentID: documentID, Code: code, Error: message})
		}
	}
}

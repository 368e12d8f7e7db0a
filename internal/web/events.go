package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msto63/personachat/internal/session"
	coreerrors "github.com/msto63/personachat/pkg/core/errors"
	"github.com/msto63/personachat/pkg/core/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 120 * time.Second
	wsPingPeriod = 50 * time.Second
	wsSendBuffer = 16
)

// PhaseEvent is pushed to the browser on every phase change
type PhaseEvent struct {
	Type    string    `json:"type"` // "phase", "pong"
	Session string    `json:"session,omitempty"`
	Phase   string    `json:"phase,omitempty"`
	From    string    `json:"from,omitempty"`
	Label   string    `json:"label,omitempty"`
	Icon    string    `json:"icon,omitempty"`
	Busy    bool      `json:"busy"`
	Warning string    `json:"warning,omitempty"`
	Turns   int       `json:"turns"`
	Time    time.Time `json:"time"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan PhaseEvent
}

// eventHub fans phase changes out to the websocket clients of a session
type eventHub struct {
	mu       sync.Mutex
	clients  map[string]map[*wsClient]struct{}
	attached map[string]bool
	logger   *logging.Logger
}

func newEventHub() *eventHub {
	return &eventHub{
		clients:  make(map[string]map[*wsClient]struct{}),
		attached: make(map[string]bool),
		logger:   logging.New("web-events"),
	}
}

// attach installs the phase listener on sess once
func (h *eventHub) attach(sess *session.Session) {
	h.mu.Lock()
	if h.attached[sess.ID] {
		h.mu.Unlock()
		return
	}
	h.attached[sess.ID] = true
	h.mu.Unlock()

	sess.Phase.AddListener(func(from, to session.Phase) {
		ev := phaseEvent(sess, to)
		ev.From = from.Key()
		h.broadcast(sess.ID, ev)
	})
}

// detach drops the clients of an evicted session
func (h *eventHub) detach(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[sessionID] {
		close(c.send)
	}
	delete(h.clients, sessionID)
	delete(h.attached, sessionID)
}

func (h *eventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, id)
	}
}

func (h *eventHub) add(sessionID string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*wsClient]struct{})
	}
	h.clients[sessionID][c] = struct{}{}
}

func (h *eventHub) remove(sessionID string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[sessionID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, sessionID)
	}
}

// broadcast never blocks the cycle; slow clients lose events
func (h *eventHub) broadcast(sessionID string, ev PhaseEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[sessionID] {
		select {
		case c.send <- ev:
		default:
			h.logger.Debug("Dropping phase event for slow client", "session", sessionID)
		}
	}
}

// sendTo delivers ev to one client if it is still registered
func (h *eventHub) sendTo(sessionID string, c *wsClient, ev PhaseEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[sessionID][c]; !ok {
		return
	}
	select {
	case c.send <- ev:
	default:
	}
}

func (h *eventHub) count(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[sessionID])
}

func phaseEvent(sess *session.Session, p session.Phase) PhaseEvent {
	ev := PhaseEvent{
		Type:    "phase",
		Session: sess.ID,
		Phase:   p.Key(),
		Label:   p.String(),
		Icon:    p.Icon(),
		Busy:    p != session.PhaseIdle,
		Turns:   sess.Store.Len(),
		Time:    time.Now(),
	}
	if p == session.PhaseIdle {
		if w := sess.Phase.LastWarning(); w != nil {
			ev.Warning = coreerrors.UserMessage(w)
		}
	}
	return ev
}

// handleWebSocket streams phase events of the caller's session
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, cookie := s.lookupSession(r)
	var header http.Header
	if cookie != nil {
		header = http.Header{"Set-Cookie": {cookie.String()}}
	}

	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan PhaseEvent, wsSendBuffer)}
	s.events.add(sess.ID, client)
	s.events.sendTo(sess.ID, client, phaseEvent(sess, sess.Phase.Current()))

	go s.writePump(client)
	s.readPump(sess.ID, client)
}

func (s *Server) readPump(sessionID string, c *wsClient) {
	defer func() {
		s.events.remove(sessionID, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket read error", "error", err)
			}
			return
		}
		if msg.Type == "ping" {
			s.events.sendTo(sessionID, c, PhaseEvent{Type: "pong", Time: time.Now()})
		}
	}
}

func (s *Server) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				s.logger.Debug("WebSocket send error", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

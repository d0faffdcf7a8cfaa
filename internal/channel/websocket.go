package channel

import (
	"encoding/json"
	"net/http"
	"sync"

	"paperbot/internal/domain"
	"paperbot/internal/metrics"

	"github.com/gorilla/websocket"
)

// wsReplayCount is how many recent spoken messages a fresh client receives
// before live delivery begins.
const wsReplayCount = 50

// WSMessage is the JSON frame sent over the live transcript feed.
type WSMessage struct {
	Type           string `json:"type"` // "message" | "status"
	Sender         string `json:"sender,omitempty"`
	Role           string `json:"role,omitempty"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Mode           string `json:"mode,omitempty"`
	LatencyMs      int64  `json:"latency_ms,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (configure CORS for production)
	},
}

// wsClient tracks one connected feed client. The mutex serialises writes,
// which gorilla requires.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// handleWS upgrades the connection and streams spoken messages: first a
// replay of recent history, then live fan-out from the bus.
func (w *Web) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	client := &wsClient{conn: conn}
	w.addClient(client)
	w.logger.Info("websocket client connected", "remote", r.RemoteAddr)

	defer func() {
		w.removeClient(client)
		conn.Close()
		w.logger.Info("websocket client disconnected", "remote", r.RemoteAddr)
	}()

	if err := client.send(WSMessage{Type: "status", Content: "connected"}); err != nil {
		return
	}
	if w.feed != nil {
		for _, msg := range w.feed.Recent(wsReplayCount) {
			if err := client.send(spokenWS(msg)); err != nil {
				return
			}
		}
	}

	// The feed is one-way; the read loop only notices disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Debug("websocket read error", "err", err)
			}
			return
		}
	}
}

func (w *Web) addClient(c *wsClient) {
	w.clientsMu.Lock()
	w.clients[c] = struct{}{}
	w.clientsMu.Unlock()
	metrics.WSClients.Inc()
}

func (w *Web) removeClient(c *wsClient) {
	w.clientsMu.Lock()
	if _, ok := w.clients[c]; ok {
		delete(w.clients, c)
		metrics.WSClients.Dec()
	}
	w.clientsMu.Unlock()
}

// broadcast fans one spoken message out to every connected feed client.
func (w *Web) broadcast(msg domain.SpokenMessage) {
	frame := spokenWS(msg)
	w.clientsMu.RLock()
	defer w.clientsMu.RUnlock()
	for c := range w.clients {
		if err := c.send(frame); err != nil {
			w.logger.Debug("websocket write failed", "err", err)
		}
	}
}

func (w *Web) closeAllClients() {
	w.clientsMu.Lock()
	defer w.clientsMu.Unlock()
	for c := range w.clients {
		c.conn.Close()
		delete(w.clients, c)
		metrics.WSClients.Dec()
	}
}

func spokenWS(msg domain.SpokenMessage) WSMessage {
	return WSMessage{
		Type:           "message",
		Sender:         msg.Message.Sender,
		Role:           string(msg.Message.Role),
		Content:        msg.Message.Content,
		ConversationID: msg.ConversationID,
		Mode:           string(msg.Mode),
		LatencyMs:      msg.LatencyMs,
	}
}

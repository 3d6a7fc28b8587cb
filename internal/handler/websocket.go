package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"contact-chat-lab/internal/hub"
	"contact-chat-lab/internal/store"
)

// NotifyHandler streams chat notifications. Clients that pass locationID and
// contactID hear only that conversation; others hear everything.
type NotifyHandler struct {
	Hub   *hub.Hub
	Store *store.Store
}

type clientMessage struct {
	Type       string `json:"type"`
	LocationID string `json:"location_id,omitempty"`
	ContactID  string `json:"contact_id,omitempty"`
	Content    string `json:"content,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
	Side       string `json:"side,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	maxFrameSize = 1024 * 1024
)

// wsWriter serializes writes; gorilla connections allow one concurrent writer.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *NotifyHandler) Serve(c *gin.Context) {
	topic := AllTopic
	if conv, ok := conversationFromQuery(c); ok {
		topic = conv.Key()
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writer := &wsWriter{conn: ws}
	conn := &hub.Connection{Topic: topic, Writer: writer}
	h.Hub.Register(conn)
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
	}()

	done := keepAlive(ws)
	defer done()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ping":
			out, _ := json.Marshal(gin.H{"type": "pong"})
			_ = writer.Write(out)
		case "message":
			// Inbound traffic from the contact side of a conversation.
			conv := store.Conversation{LocationID: msg.LocationID, ContactID: msg.ContactID}
			stored, err := h.Store.AppendMessage(conv, store.NewChatMessage{
				Direction:  store.DirectionContact,
				SenderName: msg.SenderName,
				Content:    msg.Content,
			})
			if err != nil {
				out, _ := json.Marshal(gin.H{"type": "error", "message": err.Error()})
				_ = writer.Write(out)
				continue
			}
			notify(h.Hub, conv, notification{Type: "new-message", Message: &stored})
		case "read":
			conv := store.Conversation{LocationID: msg.LocationID, ContactID: msg.ContactID}
			n, err := h.Store.MarkRead(conv, msg.Side)
			if err != nil {
				continue
			}
			out, _ := json.Marshal(gin.H{"type": "read", "side": msg.Side, "count": n})
			_ = writer.Write(out)
		}
	}
}

// keepAlive pings ws until the returned func is called.
func keepAlive(ws *websocket.Conn) func() {
	ws.SetReadLimit(maxFrameSize)
	pingPeriod := (pongWait * 9) / 10

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	var closeOnce sync.Once

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	return func() { closeOnce.Do(func() { close(done) }) }
}

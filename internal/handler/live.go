package handler

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"

	"contact-chat-lab/internal/console"
	"contact-chat-lab/internal/hub"
)

// LiveTopic carries console log updates to browser viewers.
const LiveTopic = "console"

type liveFrame struct {
	Version   uint64   `json:"version"`
	StatusLog []string `json:"statusLog"`
	WSFeed    []string `json:"wsFeed"`
}

// LiveFrame encodes the part of a snapshot the page refreshes in place.
func LiveFrame(s console.Snapshot) []byte {
	out, err := json.Marshal(liveFrame{Version: s.Version, StatusLog: s.StatusLog, WSFeed: s.WSFeed})
	if err != nil {
		slog.Error("encoding live frame", "error", err)
		return nil
	}
	return out
}

// PublishLive forwards console changes to the live topic in version order.
// A snapshot that arrives after a newer one was sent is dropped.
func PublishLive(c *console.Console, hb *hub.Hub) {
	c.Subscribe(newLivePublisher(hb).publish)
}

type livePublisher struct {
	hub  *hub.Hub
	mu   sync.Mutex
	sent uint64
}

func newLivePublisher(hb *hub.Hub) *livePublisher {
	return &livePublisher{hub: hb}
}

func (p *livePublisher) publish(s console.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Version <= p.sent {
		return
	}
	frame := LiveFrame(s)
	if frame == nil {
		return
	}
	p.sent = s.Version
	p.hub.Broadcast(LiveTopic, frame)
}

type LiveHandler struct {
	Console *console.Console
	Hub     *hub.Hub
}

func (h *LiveHandler) Serve(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writer := &wsWriter{conn: ws}
	if err := writer.Write(LiveFrame(h.Console.Snapshot())); err != nil {
		_ = ws.Close()
		return
	}

	conn := &hub.Connection{Topic: LiveTopic, Writer: writer}
	h.Hub.Register(conn)
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
	}()

	done := keepAlive(ws)
	defer done()

	// Viewers only listen; reading drives pong handling and close detection.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"contact-chat-lab/internal/hub"
	"contact-chat-lab/internal/store"
)

// AllTopic receives notifications for every conversation.
const AllTopic = "*"

// ChatHandler serves the location-contact chat message endpoints.
type ChatHandler struct {
	Store *store.Store
	Hub   *hub.Hub
}

type sendMessageBody struct {
	LocationID  string          `json:"location_id"`
	ContactID   string          `json:"contact_id"`
	Content     string          `json:"content"`
	Attachments json.RawMessage `json:"attachments"`
	SenderName  string          `json:"sender_name"`
}

type notification struct {
	Type    string             `json:"type"`
	Message *store.ChatMessage `json:"message,omitempty"`
	Token   *store.AccessToken `json:"token,omitempty"`
}

func abortMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

func conversationFromQuery(c *gin.Context) (store.Conversation, bool) {
	conv := store.Conversation{
		LocationID: strings.TrimSpace(c.Query("locationID")),
		ContactID:  strings.TrimSpace(c.Query("contactID")),
	}
	return conv, conv.LocationID != "" && conv.ContactID != ""
}

func (h *ChatHandler) List(c *gin.Context) {
	conv, ok := conversationFromQuery(c)
	if !ok {
		abortMessage(c, http.StatusBadRequest, "locationID and contactID are required")
		return
	}

	filter, err := parseMessageFilter(c)
	if err != nil {
		abortMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	msgs, err := h.Store.ListMessages(conv, filter)
	if err != nil {
		abortMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func parseMessageFilter(c *gin.Context) (store.MessageFilter, error) {
	var f store.MessageFilter
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return f, errors.New("invalid limit")
		}
		f.Limit = v
	}
	if raw := c.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return f, errors.New("invalid offset")
		}
		f.Offset = v
	}
	for key, dst := range map[string]*string{"direction": &f.Direction, "unreadBy": &f.UnreadBy} {
		raw := c.Query(key)
		if raw != "" && raw != store.DirectionLocation && raw != store.DirectionContact {
			return f, errors.New("invalid " + key)
		}
		*dst = raw
	}
	for key, dst := range map[string]*time.Time{"startTime": &f.Start, "endTime": &f.End} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return f, errors.New("invalid " + key)
		}
		*dst = t
	}
	return f, nil
}

func (h *ChatHandler) Send(c *gin.Context) {
	var body sendMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if trimmed := bytes.TrimSpace(body.Attachments); len(trimmed) > 0 && trimmed[0] != '[' {
		abortMessage(c, http.StatusBadRequest, "attachments must be an array")
		return
	}

	conv := store.Conversation{LocationID: body.LocationID, ContactID: body.ContactID}
	msg, err := h.Store.AppendMessage(conv, store.NewChatMessage{
		Direction:   store.DirectionLocation,
		SenderName:  body.SenderName,
		Content:     strings.TrimSpace(body.Content),
		Attachments: body.Attachments,
	})
	if err != nil {
		abortMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	h.notify(conv, notification{Type: "new-message", Message: &msg})
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *ChatHandler) notify(conv store.Conversation, n notification) {
	notify(h.Hub, conv, n)
}

func notify(hb *hub.Hub, conv store.Conversation, n notification) {
	if hb == nil {
		return
	}
	out, err := json.Marshal(n)
	if err != nil {
		slog.Error("encoding notification", "type", n.Type, "error", err)
		return
	}
	hb.Broadcast(conv.Key(), out)
	hb.Broadcast(AllTopic, out)
}

package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"contact-chat-lab/internal/auth"
	"contact-chat-lab/internal/hub"
	"contact-chat-lab/internal/store"
)

// TokenHandler issues and revokes contact access tokens. With a secret the
// token value is a signed JWT scoped to the conversation; without one it is
// an opaque random string.
type TokenHandler struct {
	Store       *store.Store
	Hub         *hub.Hub
	TokenConfig auth.TokenConfig
}

type createTokenBody struct {
	LocationID string `json:"location_id"`
	ContactID  string `json:"contact_id"`
	ExpiresAt  string `json:"expires_at"`
}

func (h *TokenHandler) Create(c *gin.Context) {
	var body createTokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}
	conv := store.Conversation{
		LocationID: strings.TrimSpace(body.LocationID),
		ContactID:  strings.TrimSpace(body.ContactID),
	}
	if conv.LocationID == "" || conv.ContactID == "" {
		abortMessage(c, http.StatusBadRequest, store.ErrMissingIDs.Error())
		return
	}

	var expiresAt *time.Time
	if body.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339Nano, body.ExpiresAt)
		if err != nil {
			abortMessage(c, http.StatusBadRequest, "invalid expires_at")
			return
		}
		if !t.After(time.Now()) {
			abortMessage(c, http.StatusBadRequest, "expires_at must be in the future")
			return
		}
		expiresAt = &t
	}

	value, err := h.issue(conv, expiresAt)
	if err != nil {
		abortMessage(c, http.StatusInternalServerError, "token creation failed")
		return
	}

	tok, err := h.Store.CreateToken(conv, value, expiresAt)
	if err != nil {
		abortMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	notify(h.Hub, conv, notification{Type: "token-created", Token: &tok})
	c.JSON(http.StatusCreated, gin.H{"token": tok})
}

func (h *TokenHandler) issue(conv store.Conversation, expiresAt *time.Time) (string, error) {
	if h.TokenConfig.Secret == "" {
		b := make([]byte, 24)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		return "cct_" + hex.EncodeToString(b), nil
	}
	grant := auth.Grant{
		Subject:    "contact:" + conv.ContactID,
		LocationID: conv.LocationID,
		ContactID:  conv.ContactID,
	}
	if expiresAt != nil {
		grant.ExpiresAt = *expiresAt
	}
	return auth.CreateToken(grant, h.TokenConfig)
}

func (h *TokenHandler) List(c *gin.Context) {
	conv, ok := conversationFromQuery(c)
	if !ok {
		abortMessage(c, http.StatusBadRequest, "locationID and contactID are required")
		return
	}
	tokens, err := h.Store.ListTokens(conv)
	if err != nil {
		abortMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

func (h *TokenHandler) Invalidate(c *gin.Context) {
	tok, err := h.Store.InvalidateToken(c.Param("id"))
	if errors.Is(err, store.ErrTokenNotFound) {
		abortMessage(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		abortMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	conv := store.Conversation{LocationID: tok.LocationID, ContactID: tok.ContactID}
	notify(h.Hub, conv, notification{Type: "token-invalidated", Token: &tok})
	c.JSON(http.StatusOK, gin.H{"token": tok})
}

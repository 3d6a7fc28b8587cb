package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"contact-chat-lab/internal/model"
)

const (
	messagesPath = "/location-contact-chat/messages"
	tokensPath   = "/location-contact-chat/tokens"

	RequestIDHeader = "X-Request-ID"
)

type Config struct {
	BaseURL string
	Token   string
	// Timeout of zero means requests never time out.
	Timeout time.Duration
}

// Client talks to the location-contact chat REST endpoints.
type Client struct {
	baseURL    string
	token      string
	location   *time.Location
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      strings.TrimSpace(cfg.Token),
		location:   time.Local,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
	}
}

// WithToken returns a copy of the client that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = strings.TrimSpace(token)
	return &clone
}

// WithLocation sets the zone used to read datetime-local filter values.
func (c *Client) WithLocation(loc *time.Location) *Client {
	clone := *c
	clone.location = loc
	return &clone
}

func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	clone := *c
	clone.httpClient = hc
	return &clone
}

func (c *Client) BaseURL() string { return c.baseURL }

type SendMessageRequest struct {
	LocationID  string             `json:"location_id"`
	ContactID   string             `json:"contact_id"`
	Content     string             `json:"content"`
	Attachments []model.Attachment `json:"attachments"`
}

type CreateTokenRequest struct {
	LocationID string `json:"location_id"`
	ContactID  string `json:"contact_id"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

func (c *Client) ListMessages(ctx context.Context, q MessageQuery) ([]model.Message, error) {
	params, err := q.Values(c.location)
	if err != nil {
		return nil, err
	}
	payload, err := c.do(ctx, http.MethodGet, messagesPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	items := rawArray(payload["messages"])
	messages := make([]model.Message, 0, len(items))
	for _, item := range items {
		messages = append(messages, model.NewMessage(item))
	}
	return messages, nil
}

// SendMessage posts a message. The returned message is nil when the response
// carries no message object.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*model.Message, error) {
	if req.Attachments == nil {
		req.Attachments = []model.Attachment{}
	}
	payload, err := c.do(ctx, http.MethodPost, messagesPath, req)
	if err != nil {
		return nil, err
	}
	raw := bytes.TrimSpace(payload["message"])
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	msg := model.NewMessage(raw)
	return &msg, nil
}

func (c *Client) CreateToken(ctx context.Context, req CreateTokenRequest) error {
	if req.ExpiresAt != "" {
		iso, err := ToISO(req.ExpiresAt, c.location)
		if err != nil {
			return fmt.Errorf("expires_at: %w", err)
		}
		req.ExpiresAt = iso
	}
	_, err := c.do(ctx, http.MethodPost, tokensPath, req)
	return err
}

func (c *Client) ListTokens(ctx context.Context, locationID, contactID string) ([]model.Token, error) {
	payload, err := c.do(ctx, http.MethodGet, tokensPath+"?"+conversationValues(locationID, contactID).Encode(), nil)
	if err != nil {
		return nil, err
	}
	items := rawArray(payload["tokens"])
	tokens := make([]model.Token, 0, len(items))
	for _, item := range items {
		tokens = append(tokens, model.NewToken(item))
	}
	return tokens, nil
}

func (c *Client) InvalidateToken(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, tokensPath+"/"+url.PathEscape(id)+"/invalidate", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any) (map[string]json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("chat api request failed", "request_id", requestID, "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	payload := readJSONSafe(resp.Body)
	c.logger.Debug("chat api request",
		"request_id", requestID,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(started),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, payload)
	}
	return payload, nil
}

// readJSONSafe never fails: absent or malformed bodies decode to an empty object.
func readJSONSafe(r io.Reader) map[string]json.RawMessage {
	payload := map[string]json.RawMessage{}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return payload
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload == nil {
		return map[string]json.RawMessage{}
	}
	return payload
}

func rawArray(raw json.RawMessage) []json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

package store

import (
	"encoding/json"
	"time"
)

// Conversation identifies one location-contact thread.
type Conversation struct {
	LocationID string
	ContactID  string
}

func (c Conversation) Key() string {
	return c.LocationID + "/" + c.ContactID
}

const (
	DirectionLocation = "location"
	DirectionContact  = "contact"
)

type ChatMessage struct {
	ID             string          `json:"id"`
	Seq            int64           `json:"seq"`
	LocationID     string          `json:"location_id"`
	ContactID      string          `json:"contact_id"`
	Direction      string          `json:"direction"`
	SenderType     string          `json:"sender_type"`
	SenderName     string          `json:"sender_name,omitempty"`
	Content        string          `json:"content"`
	Attachments    json.RawMessage `json:"attachments"`
	ReadByLocation bool            `json:"read_by_location"`
	ReadByContact  bool            `json:"read_by_contact"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewChatMessage is the writable part of a message.
type NewChatMessage struct {
	Direction   string
	SenderName  string
	Content     string
	Attachments json.RawMessage
}

type AccessToken struct {
	ID            string     `json:"id"`
	LocationID    string     `json:"location_id"`
	ContactID     string     `json:"contact_id"`
	Token         string     `json:"token"`
	ExpiresAt     *time.Time `json:"expires_at"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	InvalidatedAt *time.Time `json:"invalidated_at,omitempty"`
}

// MessageFilter narrows a listing. Zero values mean no constraint.
type MessageFilter struct {
	Limit     int
	Offset    int
	Direction string
	UnreadBy  string
	Start     time.Time
	End       time.Time
}

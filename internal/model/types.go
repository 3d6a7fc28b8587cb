package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	Unknown           = "unknown"
	Undefined         = "undefined"
	NoExpiry          = "—"
	DefaultTokenBadge = "token"
	tokenBadgeRunes   = 16
)

type Direction string

const (
	DirectionAny      Direction = ""
	DirectionLocation Direction = "location"
	DirectionContact  Direction = "contact"
)

func ParseDirection(raw string) (Direction, error) {
	switch d := Direction(raw); d {
	case DirectionAny, DirectionLocation, DirectionContact:
		return d, nil
	}
	return "", fmt.Errorf("invalid direction %q: want location, contact or empty", raw)
}

type Attachment struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
	MimeType string `json:"mime_type"`
	Size     *int64 `json:"size,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// MarshalJSON sends the element back exactly as the operator typed it.
func (a Attachment) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	type plain Attachment
	return json.Marshal(plain(a))
}

// NewAttachment decodes the known fields of one element. Elements that are not
// objects keep only their raw form.
func NewAttachment(raw json.RawMessage) Attachment {
	a := Attachment{Raw: compact(raw)}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return a
	}
	a.FileName = stringField(fields, "file_name")
	a.FileURL = stringField(fields, "file_url")
	a.MimeType = stringField(fields, "mime_type")
	if v, ok := fields["size"].(float64); ok {
		size := int64(v)
		a.Size = &size
	}
	return a
}

type Message struct {
	Raw json.RawMessage

	ID          string
	Content     string
	CreatedAt   string
	Sender      string
	Attachments []Attachment
}

func NewMessage(raw json.RawMessage) Message {
	m := Message{Raw: compact(raw)}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return m
	}
	var values map[string]any
	_ = json.Unmarshal(raw, &values)

	m.ID = stringField(values, "id")
	m.Content = stringField(values, "content")
	m.CreatedAt = stringField(values, "created_at", "createdAt")
	m.Sender = stringField(values, "sender_name", "sender_type")

	var items []json.RawMessage
	if err := json.Unmarshal(fields["attachments"], &items); err == nil {
		for _, item := range items {
			m.Attachments = append(m.Attachments, NewAttachment(item))
		}
	}
	return m
}

func (m Message) Timestamp() string {
	if m.CreatedAt == "" {
		return Unknown
	}
	return m.CreatedAt
}

func (m Message) SenderLabel() string {
	if m.Sender == "" {
		return Unknown
	}
	return m.Sender
}

func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Raw) == 0 {
		return []byte("null"), nil
	}
	return m.Raw, nil
}

// Pretty renders the raw record indented by two spaces.
func (m Message) Pretty() string {
	return indent(m.Raw)
}

type Token struct {
	Raw json.RawMessage

	ID        string
	ExpiresAt string
	Active    string
	Value     string
}

func NewToken(raw json.RawMessage) Token {
	t := Token{Raw: compact(raw), ID: Unknown, ExpiresAt: NoExpiry, Active: Undefined}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil || values == nil {
		return t
	}
	if id := stringField(values, "id", "token_id"); id != "" {
		t.ID = id
	}
	if exp := stringField(values, "expires_at"); exp != "" {
		t.ExpiresAt = exp
	}
	if active := stringField(values, "is_active", "active", "status"); active != "" {
		t.Active = active
	}
	t.Value = stringField(values, "token")
	return t
}

func (t Token) Badge() string {
	if t.Value == "" {
		return DefaultTokenBadge
	}
	runes := []rune(t.Value)
	if len(runes) > tokenBadgeRunes {
		runes = runes[:tokenBadgeRunes]
	}
	return string(runes)
}

func (t Token) MarshalJSON() ([]byte, error) {
	if len(t.Raw) == 0 {
		return []byte("null"), nil
	}
	return t.Raw, nil
}

func (t Token) Pretty() string {
	return indent(t.Raw)
}

// stringField returns the first present, non-null key rendered as text.
func stringField(values map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := values[key].(type) {
		case nil:
			continue
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			return string(b)
		}
	}
	return ""
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return buf.Bytes()
}

func indent(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

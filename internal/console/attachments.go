package console

import (
	"encoding/json"
	"errors"
	"strings"

	"contact-chat-lab/internal/model"
)

var (
	ErrMissingIDs          = errors.New("set locationID and contactID first")
	ErrMissingContent      = errors.New("provide content to send")
	ErrAttachmentsNotArray = errors.New("attachments must be a JSON array")
	ErrAttachmentsInvalid  = errors.New("attachments JSON invalid")
	ErrMissingTokenID      = errors.New("token id required")
)

// DefaultAttachmentsJSON seeds the composer with two sample files.
const DefaultAttachmentsJSON = `[
  {
    "file_name": "notes.pdf",
    "file_url": "https://cdn.example.com/notes.pdf",
    "mime_type": "application/pdf"
  },
  {
    "file_name": "xray.png",
    "file_url": "https://cdn.example.com/xray.png",
    "mime_type": "image/png",
    "size": 234000
  }
]`

// ParseAttachments reads the composer's attachment text. Blank text is an
// empty list; anything else must be a JSON array.
func ParseAttachments(text string) ([]model.Attachment, error) {
	if strings.TrimSpace(text) == "" {
		return []model.Attachment{}, nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, ErrAttachmentsInvalid
	}
	if _, ok := parsed.([]any); !ok {
		return nil, ErrAttachmentsNotArray
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, ErrAttachmentsInvalid
	}
	attachments := make([]model.Attachment, 0, len(items))
	for _, item := range items {
		attachments = append(attachments, model.NewAttachment(item))
	}
	return attachments, nil
}

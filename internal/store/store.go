// Package store keeps the fake chat API's conversations in memory.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultListLimit = 30

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrEmptyContent  = errors.New("content is required")
	ErrBadDirection  = errors.New("direction must be location or contact")
	ErrMissingIDs    = errors.New("location_id and contact_id are required")
)

var senderTypes = map[string]string{DirectionLocation: "location", DirectionContact: "contact"}

type Store struct {
	mu sync.RWMutex

	tokensByID             map[string]AccessToken
	tokenIDsByConversation map[string][]string

	messages *messageStore
	seq      *seqGenerator
	now      func() time.Time
}

type Options struct {
	Now func() time.Time
}

func New() *Store {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Store {
	s := &Store{
		tokensByID:             make(map[string]AccessToken),
		tokenIDsByConversation: make(map[string][]string),
		messages:               newMessageStore(),
		seq:                    newSeqGenerator(),
		now:                    opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (c Conversation) valid() bool {
	return c.LocationID != "" && c.ContactID != ""
}

func (s *Store) AppendMessage(conv Conversation, in NewChatMessage) (ChatMessage, error) {
	if !conv.valid() {
		return ChatMessage{}, ErrMissingIDs
	}
	if in.Content == "" {
		return ChatMessage{}, ErrEmptyContent
	}
	senderType, ok := senderTypes[in.Direction]
	if !ok {
		return ChatMessage{}, ErrBadDirection
	}
	attachments := in.Attachments
	if len(attachments) == 0 {
		attachments = []byte("[]")
	}

	key := conv.Key()
	msg := ChatMessage{
		ID:             uuid.NewString(),
		Seq:            s.seq.nextFor(key),
		LocationID:     conv.LocationID,
		ContactID:      conv.ContactID,
		Direction:      in.Direction,
		SenderType:     senderType,
		SenderName:     in.SenderName,
		Content:        in.Content,
		Attachments:    attachments,
		ReadByLocation: in.Direction == DirectionLocation,
		ReadByContact:  in.Direction == DirectionContact,
		CreatedAt:      s.now().UTC(),
	}
	s.messages.append(key, msg)
	return msg, nil
}

// ListMessages returns matching messages newest first.
func (s *Store) ListMessages(conv Conversation, f MessageFilter) ([]ChatMessage, error) {
	if !conv.valid() {
		return nil, ErrMissingIDs
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	return s.messages.query(conv.Key(), f), nil
}

func (s *Store) MarkRead(conv Conversation, side string) (int, error) {
	if side != DirectionLocation && side != DirectionContact {
		return 0, ErrBadDirection
	}
	return s.messages.markRead(conv.Key(), side), nil
}

func (s *Store) CreateToken(conv Conversation, value string, expiresAt *time.Time) (AccessToken, error) {
	if !conv.valid() {
		return AccessToken{}, ErrMissingIDs
	}

	tok := AccessToken{
		ID:         uuid.NewString(),
		LocationID: conv.LocationID,
		ContactID:  conv.ContactID,
		Token:      value,
		ExpiresAt:  expiresAt,
		IsActive:   true,
		CreatedAt:  s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokensByID[tok.ID] = tok
	key := conv.Key()
	s.tokenIDsByConversation[key] = append(s.tokenIDsByConversation[key], tok.ID)
	return tok, nil
}

// ListTokens returns the conversation's tokens, newest first. Expired tokens
// are reported inactive.
func (s *Store) ListTokens(conv Conversation) ([]AccessToken, error) {
	if !conv.valid() {
		return nil, ErrMissingIDs
	}

	s.mu.RLock()
	ids := s.tokenIDsByConversation[conv.Key()]
	tokens := make([]AccessToken, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		tokens = append(tokens, s.tokensByID[ids[i]])
	}
	s.mu.RUnlock()

	now := s.now()
	for i := range tokens {
		if tokens[i].ExpiresAt != nil && !now.Before(*tokens[i].ExpiresAt) {
			tokens[i].IsActive = false
		}
	}
	return tokens, nil
}

// InvalidateToken deactivates id. Invalidating twice keeps the first timestamp.
func (s *Store) InvalidateToken(id string) (AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokensByID[id]
	if !ok {
		return AccessToken{}, ErrTokenNotFound
	}
	if tok.InvalidatedAt == nil {
		at := s.now().UTC()
		tok.InvalidatedAt = &at
	}
	tok.IsActive = false
	s.tokensByID[id] = tok
	return tok, nil
}

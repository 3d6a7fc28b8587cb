// Package console holds the chat lab's form state and runs operator actions
// against the chat API. Every outcome lands in a bounded, newest-first status log.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"contact-chat-lab/internal/chatapi"
	"contact-chat-lab/internal/model"
)

const (
	StatusLogSize = 8
	FeedSize      = 6

	entrySeparator  = " · "
	entryTimeLayout = "15:04:05"
)

type Session struct {
	LocationID string `json:"locationID"`
	ContactID  string `json:"contactID"`
	AuthToken  string `json:"-"`
}

func (s Session) hasIDs() bool {
	return strings.TrimSpace(s.LocationID) != "" && strings.TrimSpace(s.ContactID) != ""
}

type Filters struct {
	Limit     string          `json:"limit"`
	Offset    string          `json:"offset"`
	Direction model.Direction `json:"direction"`
	UnreadBy  model.Direction `json:"unreadBy"`
	StartTime string          `json:"startTime"`
	EndTime   string          `json:"endTime"`
}

func DefaultFilters() Filters {
	return Filters{Limit: "30", Offset: "0"}
}

type Composer struct {
	Content     string `json:"content"`
	Attachments string `json:"attachments"`
}

// Snapshot is a copy of the console state, safe to read without locking.
type Snapshot struct {
	Session     Session         `json:"session"`
	HasToken    bool            `json:"hasToken"`
	Filters     Filters         `json:"filters"`
	Composer    Composer        `json:"composer"`
	TokenExpiry string          `json:"tokenExpiresAt"`
	Messages    []model.Message `json:"messages"`
	Tokens      []model.Token   `json:"tokens"`
	StatusLog   []string        `json:"statusLog"`
	WSFeed      []string        `json:"wsFeed"`
	// Version increases with every state change. Observers run outside the
	// lock and may see snapshots out of order; compare versions to drop old ones.
	Version uint64 `json:"version"`
}

type Options struct {
	API *chatapi.Client
	// DiscardStale drops list responses older than one already applied.
	DiscardStale bool
	Metrics      *Metrics
	Logger       *slog.Logger
	Now          func() time.Time

	Session     Session
	Filters     *Filters
	Attachments *string
}

// Console owns all form state. Operations may overlap; state changes are
// serialized, network calls run outside the lock.
type Console struct {
	api          *chatapi.Client
	discardStale bool
	metrics      *Metrics
	logger       *slog.Logger
	now          func() time.Time

	mu          sync.Mutex
	session     Session
	filters     Filters
	composer    Composer
	tokenExpiry string
	messages    []model.Message
	tokens      []model.Token
	statusLog   *BoundedLog
	wsFeed      *BoundedLog

	messageSeq sequence
	tokenSeq   sequence

	version   uint64
	observers []func(Snapshot)
}

// sequence tags list requests so late responses can be recognised.
type sequence struct {
	issued  uint64
	applied uint64
}

func (s *sequence) next() uint64 {
	s.issued++
	return s.issued
}

// accept records tag as applied unless a newer response already landed.
func (s *sequence) accept(tag uint64, discardStale bool) bool {
	if discardStale && tag < s.applied {
		return false
	}
	if tag > s.applied {
		s.applied = tag
	}
	return true
}

func New(opts Options) *Console {
	c := &Console{
		api:          opts.API,
		discardStale: opts.DiscardStale,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		now:          opts.Now,
		session:      opts.Session,
		filters:      DefaultFilters(),
		composer:     Composer{Attachments: DefaultAttachmentsJSON},
		messages:     []model.Message{},
		tokens:       []model.Token{},
		statusLog:    NewBoundedLog(StatusLogSize),
		wsFeed:       NewBoundedLog(FeedSize),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.Filters != nil {
		c.filters = *opts.Filters
	}
	if opts.Attachments != nil {
		c.composer.Attachments = *opts.Attachments
	}
	return c
}

// Subscribe registers fn to receive a snapshot after every state change.
func (c *Console) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Console) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Console) snapshotLocked() Snapshot {
	return Snapshot{
		Session:     c.session,
		HasToken:    strings.TrimSpace(c.session.AuthToken) != "",
		Filters:     c.filters,
		Composer:    c.composer,
		TokenExpiry: c.tokenExpiry,
		Messages:    append([]model.Message{}, c.messages...),
		Tokens:      append([]model.Token{}, c.tokens...),
		StatusLog:   c.statusLog.Entries(),
		WSFeed:      c.wsFeed.Entries(),
		Version:     c.version,
	}
}

// mutate applies fn under the lock and then notifies observers.
func (c *Console) mutate(fn func()) {
	c.mu.Lock()
	fn()
	c.version++
	snap := c.snapshotLocked()
	observers := append([]func(Snapshot){}, c.observers...)
	c.mu.Unlock()

	for _, observer := range observers {
		observer(snap)
	}
}

func (c *Console) stamp(entry string) string {
	return c.now().Format(entryTimeLayout) + entrySeparator + entry
}

func (c *Console) logLocked(entry string) {
	c.statusLog.Add(c.stamp(entry))
}

// Log appends one line to the status log.
func (c *Console) Log(entry string) {
	c.mutate(func() { c.logLocked(entry) })
}

func (c *Console) SetSession(s Session) {
	c.mutate(func() { c.session = s })
}

func (c *Console) SetFilters(f Filters) {
	c.mutate(func() { c.filters = f })
}

func (c *Console) SetComposer(content, attachments string) {
	c.mutate(func() { c.composer = Composer{Content: content, Attachments: attachments} })
}

func (c *Console) SetTokenExpiry(expiresAt string) {
	c.mutate(func() { c.tokenExpiry = expiresAt })
}

func (c *Console) ClearMessages() {
	c.mutate(func() {
		c.messages = []model.Message{}
		c.logLocked("cleared list")
	})
}

// ResetComposer leaves a single space in the content box.
func (c *Console) ResetComposer() {
	c.mutate(func() {
		c.composer.Content = " "
		c.logLocked("cleared composer")
	})
}

func (c *Console) client(token string) *chatapi.Client {
	return c.api.WithToken(token)
}

// reject logs a local precondition or validation failure.
func (c *Console) reject(operation string, entry string, err error) error {
	c.metrics.operation(operation, outcomeRejected)
	c.Log(entry)
	return err
}

func (c *Console) fail(operation, prefix string, err error) error {
	c.metrics.operation(operation, outcomeFailed)
	c.logger.Warn("console operation failed", "operation", operation, "error", err)
	c.Log(prefix + ": " + err.Error())
	return err
}

func (c *Console) ListMessages(ctx context.Context) error {
	const op = "list_messages"

	c.mu.Lock()
	session, filters := c.session, c.filters
	if !session.hasIDs() {
		c.mu.Unlock()
		return c.reject(op, ErrMissingIDs.Error(), ErrMissingIDs)
	}
	tag := c.messageSeq.next()
	c.mu.Unlock()

	query := chatapi.MessageQuery{
		LocationID: session.LocationID,
		ContactID:  session.ContactID,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
		Direction:  filters.Direction,
		UnreadBy:   filters.UnreadBy,
		StartTime:  filters.StartTime,
		EndTime:    filters.EndTime,
	}
	messages, err := c.client(session.AuthToken).ListMessages(ctx, query)
	if err != nil {
		return c.fail(op, "list failed", err)
	}

	applied := false
	c.mutate(func() {
		if !c.messageSeq.accept(tag, c.discardStale) {
			return
		}
		applied = true
		c.messages = messages
		c.logLocked(fmt.Sprintf("listed %d messages", len(messages)))
	})
	if !applied {
		c.metrics.operation(op, outcomeStale)
		c.logger.Debug("discarded stale message list", "tag", tag)
		return nil
	}
	c.metrics.operation(op, outcomeOK)
	return nil
}

func (c *Console) SendMessage(ctx context.Context) error {
	const op = "send_message"

	c.mu.Lock()
	session, composer := c.session, c.composer
	c.mu.Unlock()

	if !session.hasIDs() {
		return c.reject(op, ErrMissingIDs.Error(), ErrMissingIDs)
	}
	content := strings.TrimSpace(composer.Content)
	if content == "" {
		return c.reject(op, ErrMissingContent.Error(), ErrMissingContent)
	}
	attachments, err := ParseAttachments(composer.Attachments)
	if err != nil {
		return c.reject(op, err.Error(), err)
	}

	msg, err := c.client(session.AuthToken).SendMessage(ctx, chatapi.SendMessageRequest{
		LocationID:  session.LocationID,
		ContactID:   session.ContactID,
		Content:     content,
		Attachments: attachments,
	})
	if err != nil {
		return c.fail(op, "send failed", err)
	}

	c.mutate(func() {
		if msg != nil {
			c.messages = append([]model.Message{*msg}, c.messages...)
		}
		c.logLocked("message sent")
	})
	c.metrics.operation(op, outcomeOK)
	return nil
}

// CreateToken creates a token and then re-lists; the server owns the record's shape.
func (c *Console) CreateToken(ctx context.Context) error {
	const op = "create_token"

	c.mu.Lock()
	session, expiresAt := c.session, c.tokenExpiry
	c.mu.Unlock()

	if !session.hasIDs() {
		return c.reject(op, ErrMissingIDs.Error(), ErrMissingIDs)
	}

	err := c.client(session.AuthToken).CreateToken(ctx, chatapi.CreateTokenRequest{
		LocationID: session.LocationID,
		ContactID:  session.ContactID,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return c.fail(op, "token create failed", err)
	}
	c.metrics.operation(op, outcomeOK)
	c.Log("token created")
	return c.relistTokens(ctx)
}

func (c *Console) ListTokens(ctx context.Context) error {
	const op = "list_tokens"

	c.mu.Lock()
	session := c.session
	if !session.hasIDs() {
		c.mu.Unlock()
		return c.reject(op, ErrMissingIDs.Error(), ErrMissingIDs)
	}
	tag := c.tokenSeq.next()
	c.mu.Unlock()

	tokens, err := c.client(session.AuthToken).ListTokens(ctx, session.LocationID, session.ContactID)
	if err != nil {
		return c.fail(op, "token list failed", err)
	}

	applied := false
	c.mutate(func() {
		if !c.tokenSeq.accept(tag, c.discardStale) {
			return
		}
		applied = true
		c.tokens = tokens
		c.logLocked(fmt.Sprintf("listed %d tokens", len(tokens)))
	})
	if !applied {
		c.metrics.operation(op, outcomeStale)
		c.logger.Debug("discarded stale token list", "tag", tag)
		return nil
	}
	c.metrics.operation(op, outcomeOK)
	return nil
}

// InvalidateToken revokes id and re-lists. On failure the token list is left as fetched.
func (c *Console) InvalidateToken(ctx context.Context, id string) error {
	const op = "invalidate_token"

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if strings.TrimSpace(id) == "" {
		return c.reject(op, "invalidate failed: "+ErrMissingTokenID.Error(), ErrMissingTokenID)
	}

	if err := c.client(session.AuthToken).InvalidateToken(ctx, id); err != nil {
		return c.fail(op, "invalidate failed", err)
	}
	c.metrics.operation(op, outcomeOK)
	c.Log(fmt.Sprintf("token %s invalidated", id))
	return c.relistTokens(ctx)
}

func (c *Console) relistTokens(ctx context.Context) error {
	if err := c.ListTokens(ctx); err != nil {
		return fmt.Errorf("relist tokens: %w", err)
	}
	return nil
}

// OnOpen, OnFrame, OnClose and OnError make the console a feed.Handler.
func (c *Console) OnOpen() {
	c.metrics.feedEvent("open")
	c.Log("websocket connected")
}

func (c *Console) OnFrame(data string) {
	c.metrics.frame()
	c.mutate(func() { c.wsFeed.Add(c.stamp(data)) })
}

func (c *Console) OnClose() {
	c.metrics.feedEvent("close")
	c.Log("websocket closed")
}

func (c *Console) OnError(err error) {
	c.metrics.feedEvent("error")
	c.logger.Debug("feed error", "error", err)
	c.Log("websocket error")
}

// IsRejected reports whether err came from a local check rather than the network.
func IsRejected(err error) bool {
	return errors.Is(err, ErrMissingIDs) ||
		errors.Is(err, ErrMissingContent) ||
		errors.Is(err, ErrAttachmentsNotArray) ||
		errors.Is(err, ErrAttachmentsInvalid) ||
		errors.Is(err, ErrMissingTokenID)
}

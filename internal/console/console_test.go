package console

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-chat-lab/internal/chatapi"
)

type reply struct {
	status int
	body   string
}

type fakeChat struct {
	mu      sync.Mutex
	calls   []string
	bodies  map[string]string
	replies map[string]reply
}

func newFakeChat(t *testing.T) (*fakeChat, *chatapi.Client) {
	t.Helper()
	f := &fakeChat{bodies: map[string]string{}, replies: map[string]reply{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, chatapi.New(chatapi.Config{BaseURL: srv.URL}).WithLocation(time.UTC)
}

func (f *fakeChat) on(key string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[key] = reply{status: status, body: body}
}

func (f *fakeChat) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.bodies[key] = string(body)
	rep, ok := f.replies[key]
	f.mu.Unlock()

	if !ok {
		rep = reply{status: http.StatusOK, body: `{}`}
	}
	w.WriteHeader(rep.status)
	_, _ = w.Write([]byte(rep.body))
}

func (f *fakeChat) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeChat) bodyOf(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key]
}

const (
	messagesKey   = "GET /location-contact-chat/messages"
	sendKey       = "POST /location-contact-chat/messages"
	createKey     = "POST /location-contact-chat/tokens"
	tokensKey     = "GET /location-contact-chat/tokens"
	invalidateKey = "POST /location-contact-chat/tokens/t1/invalidate"
)

var fixedNow = func() time.Time { return time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC) }

func newTestConsole(t *testing.T, session Session) (*Console, *fakeChat) {
	t.Helper()
	fake, api := newFakeChat(t)
	c := New(Options{API: api, DiscardStale: true, Now: fixedNow, Session: session})
	return c, fake
}

var withIDs = Session{LocationID: "loc-1", ContactID: "con-1", AuthToken: "tok"}

func TestOperations_RequireBothIDs(t *testing.T) {
	ops := map[string]func(*Console) error{
		"list":   func(c *Console) error { return c.ListMessages(context.Background()) },
		"send":   func(c *Console) error { return c.SendMessage(context.Background()) },
		"create": func(c *Console) error { return c.CreateToken(context.Background()) },
		"tokens": func(c *Console) error { return c.ListTokens(context.Background()) },
	}
	sessions := []Session{
		{LocationID: "", ContactID: "con"},
		{LocationID: "loc", ContactID: ""},
		{LocationID: "  ", ContactID: "con"},
	}

	for name, op := range ops {
		for _, session := range sessions {
			c, fake := newTestConsole(t, session)
			c.SetComposer("hello", "")

			err := op(c)
			require.ErrorIs(t, err, ErrMissingIDs, name)
			assert.Empty(t, fake.callLog(), name)

			log := c.Snapshot().StatusLog
			require.Len(t, log, 1, name)
			assert.Equal(t, "09:30:00 · set locationID and contactID first", log[0])
		}
	}
}

func TestSendMessage_BlankContent(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t"} {
		c, fake := newTestConsole(t, withIDs)
		c.SetComposer(content, "")

		err := c.SendMessage(context.Background())
		require.ErrorIs(t, err, ErrMissingContent)
		assert.Empty(t, fake.callLog())
		assert.Equal(t, []string{"09:30:00 · provide content to send"}, c.Snapshot().StatusLog)
	}
}

func TestSendMessage_EmptyAttachmentsSendsEmptyArray(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)
	c.SetComposer("  hi there  ", "")

	require.NoError(t, c.SendMessage(context.Background()))
	assert.JSONEq(t,
		`{"location_id":"loc-1","contact_id":"con-1","content":"hi there","attachments":[]}`,
		fake.bodyOf(sendKey))
}

func TestSendMessage_AttachmentValidation(t *testing.T) {
	cases := []struct {
		input string
		err   error
		entry string
	}{
		{input: "{}", err: ErrAttachmentsNotArray, entry: "attachments must be a JSON array"},
		{input: "[1,", err: ErrAttachmentsInvalid, entry: "attachments JSON invalid"},
		{input: `"x"`, err: ErrAttachmentsNotArray, entry: "attachments must be a JSON array"},
	}
	for _, tc := range cases {
		c, fake := newTestConsole(t, withIDs)
		c.SetComposer("hi", tc.input)

		err := c.SendMessage(context.Background())
		require.ErrorIs(t, err, tc.err)
		assert.True(t, IsRejected(err))
		assert.Empty(t, fake.callLog())
		assert.Equal(t, []string{"09:30:00 · " + tc.entry}, c.Snapshot().StatusLog)
	}
}

func TestSendMessage_DefaultAttachmentsPassThrough(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)
	c.SetComposer("hi", DefaultAttachmentsJSON)

	require.NoError(t, c.SendMessage(context.Background()))
	var body struct {
		Attachments []map[string]any `json:"attachments"`
	}
	require.NoError(t, json.Unmarshal([]byte(fake.bodyOf(sendKey)), &body))
	require.Len(t, body.Attachments, 2)
	assert.Equal(t, "xray.png", body.Attachments[1]["file_name"])
	assert.EqualValues(t, 234000, body.Attachments[1]["size"])
}

func TestSendMessage_PrependsReturnedMessage(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)
	fake.on(messagesKey, http.StatusOK, `{"messages":[{"id":"old1"},{"id":"old2"}]}`)
	fake.on(sendKey, http.StatusCreated, `{"message":{"id":"m1"}}`)

	require.NoError(t, c.ListMessages(context.Background()))
	c.SetComposer("hi", "")
	require.NoError(t, c.SendMessage(context.Background()))

	snap := c.Snapshot()
	ids := []string{}
	for _, m := range snap.Messages {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m1", "old1", "old2"}, ids)
	assert.Equal(t, "09:30:00 · message sent", snap.StatusLog[0])
}

func TestSendMessage_NoMessageInResponse(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)
	fake.on(sendKey, http.StatusOK, `{}`)
	c.SetComposer("hi", "")

	require.NoError(t, c.SendMessage(context.Background()))
	assert.Empty(t, c.Snapshot().Messages)
}

func TestListMessages_ReplacesCollection(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)
	fake.on(messagesKey, http.StatusOK, `{"messages":[{"a":1}]}`)

	require.NoError(t, c.ListMessages(context.Background()))
	snap := c.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.JSONEq(t, `{"a":1}`, string(snap.Messages[0].Raw))
	assert.Equal(t, "09:30:00 · listed 1 messages", snap.StatusLog[0])

	fake.on(messagesKey, http.StatusOK, `{"messages":"x"}`)
	require.NoError(t, c.ListMessages(context.Background()))
	snap = c.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Equal(t, "09:30:00 · listed 0 messages", snap.StatusLog[0])
}

func TestListMessages_FailureKeepsState(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)
	fake.on(messagesKey, http.StatusOK, `{"messages":[{"id":"keep"}]}`)
	require.NoError(t, c.ListMessages(context.Background()))

	fake.on(messagesKey, http.StatusInternalServerError, `{"message":"boom"}`)
	err := c.ListMessages(context.Background())
	require.Error(t, err)

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "keep", snap.Messages[0].ID)
	assert.Equal(t, "09:30:00 · list failed: boom", snap.StatusLog[0])
}

func TestListMessages_UnparsableErrorBody(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)
	fake.on(messagesKey, http.StatusBadGateway, `not json`)

	assert.NotPanics(t, func() { _ = c.ListMessages(context.Background()) })
	log := c.Snapshot().StatusLog
	require.Len(t, log, 1)
	assert.True(t, strings.HasPrefix(log[0], "09:30:00 · list failed: "))
}

func TestListMessages_BadTimeFilterNoNetwork(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)
	c.SetFilters(Filters{StartTime: "not-a-time"})

	require.Error(t, c.ListMessages(context.Background()))
	assert.Empty(t, fake.callLog())
	assert.Contains(t, c.Snapshot().StatusLog[0], "list failed: startTime")
}

func TestCreateToken_RelistsAfterSuccess(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)
	fake.on(tokensKey, http.StatusOK, `{"tokens":[{"id":"t9"}]}`)
	c.SetTokenExpiry("2026-02-01T08:00")

	require.NoError(t, c.CreateToken(context.Background()))
	assert.Equal(t, []string{createKey, tokensKey}, fake.callLog())
	assert.JSONEq(t,
		`{"location_id":"loc-1","contact_id":"con-1","expires_at":"2026-02-01T08:00:00.000Z"}`,
		fake.bodyOf(createKey))

	snap := c.Snapshot()
	require.Len(t, snap.Tokens, 1)
	assert.Equal(t, "t9", snap.Tokens[0].ID)
	assert.Equal(t, []string{"09:30:00 · listed 1 tokens", "09:30:00 · token created"}, snap.StatusLog)
}

func TestCreateToken_FailureSkipsRelist(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)
	fake.on(createKey, http.StatusForbidden, `{"message":"nope"}`)

	require.Error(t, c.CreateToken(context.Background()))
	assert.Equal(t, []string{createKey}, fake.callLog())
	assert.Equal(t, "09:30:00 · token create failed: nope", c.Snapshot().StatusLog[0])
}

func TestListTokens_NonArrayIsEmpty(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)
	fake.on(tokensKey, http.StatusOK, `{"tokens":{"id":"x"}}`)

	require.NoError(t, c.ListTokens(context.Background()))
	assert.Empty(t, c.Snapshot().Tokens)
}

func TestInvalidateToken_RelistsAfterward(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)

	require.NoError(t, c.InvalidateToken(context.Background(), "t1"))
	assert.Equal(t, []string{invalidateKey, tokensKey}, fake.callLog())
	assert.Empty(t, fake.bodyOf(invalidateKey))
	assert.Equal(t, "09:30:00 · token t1 invalidated", c.Snapshot().StatusLog[1])
}

func TestInvalidateToken_FailureKeepsTokens(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)
	fake.on(tokensKey, http.StatusOK, `{"tokens":[{"id":"t1"}]}`)
	require.NoError(t, c.ListTokens(context.Background()))

	fake.on(invalidateKey, http.StatusNotFound, `{"message":"boom"}`)
	require.Error(t, c.InvalidateToken(context.Background(), "t1"))

	snap := c.Snapshot()
	require.Len(t, snap.Tokens, 1)
	assert.Equal(t, "09:30:00 · invalidate failed: boom", snap.StatusLog[0])
	assert.Equal(t, []string{tokensKey, invalidateKey}, fake.callLog())
}

func TestInvalidateToken_BlankID(t *testing.T) {
	c, fake := newTestConsole(t, withIDs)

	require.ErrorIs(t, c.InvalidateToken(context.Background(), " "), ErrMissingTokenID)
	assert.Empty(t, fake.callLog())
}

func TestStatusLogBounded(t *testing.T) {
	c, _ := newTestConsole(t, Session{})
	for i := 0; i < 20; i++ {
		c.ClearMessages()
	}
	c.ResetComposer()

	snap := c.Snapshot()
	assert.Len(t, snap.StatusLog, StatusLogSize)
	assert.Equal(t, "09:30:00 · cleared composer", snap.StatusLog[0])
	assert.Equal(t, " ", snap.Composer.Content)
}

func TestFeedEvents(t *testing.T) {
	c, _ := newTestConsole(t, Session{})
	c.OnOpen()
	for i := 0; i < 10; i++ {
		c.OnFrame(strings.Repeat("x", i))
	}
	c.OnError(errors.New("reset"))
	c.OnClose()

	snap := c.Snapshot()
	assert.Len(t, snap.WSFeed, FeedSize)
	assert.Equal(t, "09:30:00 · xxxxxxxxx", snap.WSFeed[0])
	assert.Equal(t, []string{
		"09:30:00 · websocket closed",
		"09:30:00 · websocket error",
		"09:30:00 · websocket connected",
	}, snap.StatusLog)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	c, _ := newTestConsole(t, Session{})
	var got []Snapshot
	c.Subscribe(func(s Snapshot) { got = append(got, s) })

	c.OnFrame("hello")
	require.Len(t, got, 1)
	assert.Equal(t, []string{"09:30:00 · hello"}, got[0].WSFeed)
}

func TestSnapshotVersionIncreases(t *testing.T) {
	c, _ := newTestConsole(t, Session{})
	start := c.Snapshot().Version

	var versions []uint64
	c.Subscribe(func(s Snapshot) { versions = append(versions, s.Version) })
	c.OnFrame("one")
	c.ResetComposer()
	c.ClearMessages()

	assert.Equal(t, []uint64{start + 1, start + 2, start + 3}, versions)
	assert.Equal(t, start+3, c.Snapshot().Version)
}

// slowList holds the first message listing until released.
type slowList struct {
	release chan struct{}
	mu      sync.Mutex
	n       int
}

func (s *slowList) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.n++
	n := s.n
	s.mu.Unlock()
	if n == 1 {
		<-s.release
		_, _ = w.Write([]byte(`{"messages":[{"id":"stale"}]}`))
		return
	}
	_, _ = w.Write([]byte(`{"messages":[{"id":"fresh"}]}`))
}

func runOverlappingLists(t *testing.T, discardStale bool) string {
	t.Helper()
	slow := &slowList{release: make(chan struct{})}
	srv := httptest.NewServer(slow)
	defer srv.Close()

	c := New(Options{
		API:          chatapi.New(chatapi.Config{BaseURL: srv.URL}),
		DiscardStale: discardStale,
		Now:          fixedNow,
		Session:      withIDs,
	})

	first := make(chan error, 1)
	go func() { first <- c.ListMessages(context.Background()) }()
	require.Eventually(t, func() bool {
		slow.mu.Lock()
		defer slow.mu.Unlock()
		return slow.n == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.ListMessages(context.Background()))
	close(slow.release)
	require.NoError(t, <-first)

	msgs := c.Snapshot().Messages
	require.Len(t, msgs, 1)
	return msgs[0].ID
}

func TestListMessages_DiscardsStaleResponse(t *testing.T) {
	assert.Equal(t, "fresh", runOverlappingLists(t, true))
}

func TestListMessages_LastResponseWinsWhenNotGuarded(t *testing.T) {
	assert.Equal(t, "stale", runOverlappingLists(t, false))
}

package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	frames chan string
	closed chan struct{}
}

func newRecorder() *recorder {
	return &recorder{frames: make(chan string, 16), closed: make(chan struct{}, 16)}
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) OnOpen() { r.add("open") }
func (r *recorder) OnFrame(data string) {
	r.add("frame:" + data)
	r.frames <- data
}
func (r *recorder) OnClose() {
	r.add("close")
	r.closed <- struct{}{}
}
func (r *recorder) OnError(err error) { r.add("error") }

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestConn_ReceivesFramesThenServerClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"t":"new-message"}`))
		_ = ws.WriteMessage(websocket.TextMessage, []byte("plain"))
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	rec := newRecorder()
	conn := New(wsURL(srv), rec)
	if err := conn.Run(context.Background()); err == nil {
		t.Fatalf("expected close error from Run without reconnect")
	}

	got := rec.snapshot()
	want := []string{"open", `frame:{"t":"new-message"}`, "frame:plain", "close"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected events: %v", got)
	}
	if conn.State() != StateClosed {
		t.Fatalf("expected closed, got %s", conn.State())
	}
}

func TestConn_DialFailureReportsErrorAndClose(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	rec := newRecorder()
	conn := New(wsURL(srv), rec)
	if err := conn.Run(context.Background()); err == nil {
		t.Fatalf("expected dial error")
	}
	got := rec.snapshot()
	if strings.Join(got, "|") != "error|close" {
		t.Fatalf("unexpected events: %v", got)
	}
	if conn.State() != StateFailed {
		t.Fatalf("expected failed, got %s", conn.State())
	}
}

func TestConn_CloseStopsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte("hello"))
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rec := newRecorder()
	conn := New(wsURL(srv), rec, WithReconnect(DefaultReconnectPolicy()))
	done := make(chan error, 1)
	go func() { done <- conn.Run(context.Background()) }()

	select {
	case <-rec.frames:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for frame")
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil after Close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
	if conn.State() != StateClosed {
		t.Fatalf("expected closed, got %s", conn.State())
	}
}

func TestConn_ReconnectsAfterDrop(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()
		_ = ws.WriteMessage(websocket.TextMessage, []byte("frame"))
		if n == 1 {
			_ = ws.Close()
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rec := newRecorder()
	policy := ReconnectPolicy{MaxAttempts: 2, InitialDelay: 10 * time.Millisecond, Multiplier: 1}
	conn := New(wsURL(srv), rec, WithReconnect(policy))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-rec.frames:
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for frame %d", i)
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	if dials != 2 {
		t.Fatalf("expected 2 dials, got %d", dials)
	}
}

func TestReconnectPolicy_Backoff(t *testing.T) {
	p := DefaultReconnectPolicy()
	if p.NextDelay(1) != time.Second || p.NextDelay(2) != 2*time.Second || p.NextDelay(3) != 4*time.Second {
		t.Fatalf("unexpected backoff: %v %v %v", p.NextDelay(1), p.NextDelay(2), p.NextDelay(3))
	}
	if p.NextDelay(10) != 30*time.Second {
		t.Fatalf("expected cap at 30s, got %v", p.NextDelay(10))
	}
	if (ReconnectPolicy{}).ShouldRetry(1) {
		t.Fatalf("zero policy must not retry")
	}
}

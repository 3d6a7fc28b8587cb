package hub

import "testing"

type testWriter struct {
	writes int
	closed bool
	fail   bool
}

func (w *testWriter) Write(message []byte) error {
	w.writes++
	if w.fail {
		return errTest
	}
	return nil
}

func (w *testWriter) Close() error {
	w.closed = true
	return nil
}

var errTest = &testErr{}

type testErr struct{}

func (*testErr) Error() string { return "test" }

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	h := New()
	w1 := &testWriter{}
	c1 := &Connection{Topic: "loc/con", Writer: w1}

	h.Register(c1)
	h.Broadcast("loc/con", []byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected 1 write, got %d", w1.writes)
	}

	h.Unregister(c1)
	h.Broadcast("loc/con", []byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected no more writes, got %d", w1.writes)
	}
	if h.Count("loc/con") != 0 {
		t.Fatalf("expected empty topic")
	}
}

func TestHub_TopicsAreIsolated(t *testing.T) {
	h := New()
	a := &testWriter{}
	b := &testWriter{}
	h.Register(&Connection{Topic: "a", Writer: a})
	h.Register(&Connection{Topic: "b", Writer: b})

	h.Broadcast("a", []byte("x"))
	if a.writes != 1 || b.writes != 0 {
		t.Fatalf("expected only topic a written, got a=%d b=%d", a.writes, b.writes)
	}
}

func TestHub_RemovesFailedConnections(t *testing.T) {
	h := New()
	w1 := &testWriter{fail: true}
	c1 := &Connection{Topic: "u", Writer: w1}
	h.Register(c1)

	h.Broadcast("u", []byte("x"))
	h.Broadcast("u", []byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected only 1 write before removal, got %d", w1.writes)
	}
	if !w1.closed {
		t.Fatalf("expected failed writer closed")
	}
}

func TestHub_CloseAll(t *testing.T) {
	h := New()
	w1 := &testWriter{}
	h.Register(&Connection{Topic: "u", Writer: w1})

	h.CloseAll()
	if !w1.closed || h.Count("u") != 0 {
		t.Fatalf("expected writer closed and hub empty")
	}
}

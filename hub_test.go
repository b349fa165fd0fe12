package server

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"stream-rush/server/logging"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	pings    int
	closed   bool
	writeErr error
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.messages = append(c.messages, buf)
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return nil
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) messageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *fakeConn) lastMessage() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestHub(now func() time.Time) *Hub {
	cfg := HubConfig{}
	if now != nil {
		cfg.Clock = logging.ClockFunc(now)
	}
	return NewHub(cfg)
}

func TestHubRegisterStartsUnknown(t *testing.T) {
	hub := newTestHub(nil)
	id := hub.Register(&fakeConn{})
	role, ok := hub.Role(id)
	if !ok || role != RoleUnknown {
		t.Fatalf("expected unknown role for fresh subscriber, got %q ok=%v", role, ok)
	}
	if hub.Count() != 1 {
		t.Fatalf("expected one subscriber, got %d", hub.Count())
	}
}

func TestHubIdentify(t *testing.T) {
	hub := newTestHub(nil)
	id := hub.Register(&fakeConn{})
	if !hub.Identify(id, RoleOverlay) {
		t.Fatalf("identify failed for registered subscriber")
	}
	role, _ := hub.Role(id)
	if role != RoleOverlay {
		t.Fatalf("expected overlay role, got %q", role)
	}
	if hub.Identify("sub-999", RoleOverlay) {
		t.Fatalf("identify should fail for unknown subscriber")
	}
}

func TestHubPublishExcludesRole(t *testing.T) {
	hub := newTestHub(nil)
	play := &fakeConn{}
	overlay := &fakeConn{}
	unknown := &fakeConn{}
	playID := hub.Register(play)
	overlayID := hub.Register(overlay)
	hub.Register(unknown)
	hub.Identify(playID, RolePlayClient)
	hub.Identify(overlayID, RoleOverlay)

	hub.Publish(map[string]string{"type": "gamestate_update"}, PublishOptions{ExcludeRole: RolePlayClient})

	if play.messageCount() != 0 {
		t.Fatalf("excluded role received %d messages", play.messageCount())
	}
	if overlay.messageCount() != 1 {
		t.Fatalf("overlay expected 1 message, got %d", overlay.messageCount())
	}
	// Unidentified subscribers stay in the broadcast set.
	if unknown.messageCount() != 1 {
		t.Fatalf("unknown-role subscriber expected 1 message, got %d", unknown.messageCount())
	}
}

func TestHubPublishRemovesFailedWriters(t *testing.T) {
	hub := newTestHub(nil)
	good := &fakeConn{}
	bad := &fakeConn{writeErr: errors.New("broken pipe")}
	hub.Register(good)
	hub.Register(bad)

	hub.Publish(map[string]string{"type": "overlay_update"}, PublishOptions{})

	if good.messageCount() != 1 {
		t.Fatalf("healthy subscriber expected 1 message, got %d", good.messageCount())
	}
	if hub.Count() != 1 {
		t.Fatalf("expected failed writer to be removed, count=%d", hub.Count())
	}
	if !bad.isClosed() {
		t.Fatalf("expected failed writer's connection to be closed")
	}
}

func TestHubSend(t *testing.T) {
	hub := newTestHub(nil)
	conn := &fakeConn{}
	id := hub.Register(conn)

	if err := hub.Send(id, map[string]string{"type": "pong"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	var msg map[string]string
	if err := json.Unmarshal(conn.lastMessage(), &msg); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if msg["type"] != "pong" {
		t.Fatalf("unexpected payload: %v", msg)
	}
	if err := hub.Send("sub-999", msg); err == nil {
		t.Fatalf("expected error for unknown subscriber")
	}
}

func TestHubSweepStaleEvictsAndPings(t *testing.T) {
	now := time.Unix(5000, 0)
	hub := NewHub(HubConfig{
		Clock:           logging.ClockFunc(func() time.Time { return now }),
		LivenessTimeout: time.Minute,
	})
	staleConn := &fakeConn{}
	liveConn := &fakeConn{}
	staleID := hub.Register(staleConn)
	liveID := hub.Register(liveConn)

	now = now.Add(2 * time.Minute)
	hub.Touch(liveID)
	now = now.Add(time.Second)

	evicted := hub.SweepStale(now)
	if len(evicted) != 1 || evicted[0] != staleID {
		t.Fatalf("expected %s evicted, got %v", staleID, evicted)
	}
	if !staleConn.isClosed() {
		t.Fatalf("expected stale connection closed")
	}
	if liveConn.pings != 1 {
		t.Fatalf("expected live subscriber pinged once, got %d", liveConn.pings)
	}
	if _, ok := hub.Role(staleID); ok {
		t.Fatalf("evicted subscriber still registered")
	}
	if _, ok := hub.Role(liveID); !ok {
		t.Fatalf("live subscriber lost during sweep")
	}
}

func TestHubUnregisterClosesConnection(t *testing.T) {
	hub := newTestHub(nil)
	conn := &fakeConn{}
	id := hub.Register(conn)
	hub.Unregister(id, "client_closed")
	if !conn.isClosed() {
		t.Fatalf("expected connection closed on unregister")
	}
	if hub.Count() != 0 {
		t.Fatalf("expected empty hub, count=%d", hub.Count())
	}
	// Repeat unregister is a no-op.
	hub.Unregister(id, "client_closed")
}

func TestParseRole(t *testing.T) {
	if role, ok := ParseRole("play_client"); !ok || role != RolePlayClient {
		t.Fatalf("unexpected parse result %q %v", role, ok)
	}
	if role, ok := ParseRole("overlay"); !ok || role != RoleOverlay {
		t.Fatalf("unexpected parse result %q %v", role, ok)
	}
	if role, ok := ParseRole("spectator"); ok || role != RoleUnknown {
		t.Fatalf("expected unknown for bad role, got %q %v", role, ok)
	}
}

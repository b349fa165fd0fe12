package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"stream-rush/server/internal/telemetry"
	"stream-rush/server/logging"
	loggingnetwork "stream-rush/server/logging/network"
)

// Role classifies a subscriber. Connections start UNKNOWN and stay in
// the broadcast set until identified; delivery fails open, effects do
// not.
type Role string

const (
	RoleUnknown    Role = "unknown"
	RolePlayClient Role = "play_client"
	RoleOverlay    Role = "overlay"
)

// ParseRole maps a wire string onto a known Role.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RolePlayClient, RoleOverlay:
		return Role(raw), true
	}
	return RoleUnknown, false
}

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type hubSubscriber struct {
	id       string
	conn     Conn
	mu       sync.Mutex
	role     Role
	lastSeen time.Time
}

func (s *hubSubscriber) write(data []byte, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// HubConfig tunes the broadcast hub.
type HubConfig struct {
	Clock           logging.Clock
	Logger          telemetry.Logger
	Publisher       logging.Publisher
	LivenessTimeout time.Duration
}

// Hub owns the subscriber registry and fan-out. It never reads the
// session state; callers hand it fully-built messages.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*hubSubscriber
	nextID      atomic.Uint64

	clock           logging.Clock
	logger          telemetry.Logger
	publisher       logging.Publisher
	livenessTimeout time.Duration
}

// NewHub creates an empty hub.
func NewHub(cfg HubConfig) *Hub {
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	timeout := cfg.LivenessTimeout
	if timeout <= 0 {
		timeout = defaultLivenessTimeout
	}
	return &Hub{
		subscribers:     make(map[string]*hubSubscriber),
		clock:           clock,
		logger:          logger,
		publisher:       publisher,
		livenessTimeout: timeout,
	}
}

// Register adds a connection with role UNKNOWN and returns its id.
func (h *Hub) Register(conn Conn) string {
	id := fmt.Sprintf("sub-%d", h.nextID.Add(1))
	sub := &hubSubscriber{
		id:       id,
		conn:     conn,
		role:     RoleUnknown,
		lastSeen: h.clock.Now(),
	}
	h.mu.Lock()
	h.subscribers[id] = sub
	h.mu.Unlock()
	loggingnetwork.SubscriberConnected(context.Background(), h.publisher, id)
	return id
}

// Identify sets a subscriber's role from the out-of-band identify
// message. Unknown role strings leave the subscriber UNKNOWN.
func (h *Hub) Identify(id string, role Role) bool {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		sub.mu.Lock()
		sub.role = role
		sub.lastSeen = h.clock.Now()
		sub.mu.Unlock()
	}
	h.mu.Unlock()
	if ok {
		loggingnetwork.SubscriberIdentified(context.Background(), h.publisher, id, loggingnetwork.IdentifyPayload{Role: string(role)})
	}
	return ok
}

// Role reports a subscriber's current role.
func (h *Hub) Role(id string) (Role, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subscribers[id]
	if !ok {
		return RoleUnknown, false
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.role, true
}

// Touch refreshes a subscriber's liveness, from heartbeats and pongs.
func (h *Hub) Touch(id string) {
	h.mu.Lock()
	if sub, ok := h.subscribers[id]; ok {
		sub.mu.Lock()
		sub.lastSeen = h.clock.Now()
		sub.mu.Unlock()
	}
	h.mu.Unlock()
}

// Unregister removes a subscriber and closes its connection.
func (h *Hub) Unregister(id, reason string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	sub.conn.Close()
	loggingnetwork.SubscriberDisconnected(context.Background(), h.publisher, id, loggingnetwork.DisconnectPayload{Reason: reason})
}

// PublishOptions filters a broadcast.
type PublishOptions struct {
	// ExcludeRole suppresses delivery to subscribers of that role, so
	// authoritative state is never echoed back to the role that
	// produced it.
	ExcludeRole Role
}

// Publish serializes payload once and writes it to every live
// subscriber the options allow. Failed writers are collected during
// the iteration and removed after it completes, never mid-loop.
func (h *Hub) Publish(payload any, opts PublishOptions) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("failed to marshal broadcast payload: %v", err)
		return
	}

	h.mu.Lock()
	targets := make([]*hubSubscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		sub.mu.Lock()
		role := sub.role
		sub.mu.Unlock()
		if opts.ExcludeRole != "" && role == opts.ExcludeRole {
			continue
		}
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	deadline := h.clock.Now().Add(writeWait)
	var failed []string
	for _, sub := range targets {
		if err := sub.write(data, deadline); err != nil {
			h.logger.Printf("failed to send update to %s: %v", sub.id, err)
			failed = append(failed, sub.id)
		}
	}
	for _, id := range failed {
		h.Unregister(id, "write_failed")
	}
}

// Send serializes payload and writes it to a single subscriber. The
// caller decides what a failed write means; the hub does not evict.
func (h *Hub) Send(id string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown subscriber %s", id)
	}
	return sub.write(data, h.clock.Now().Add(writeWait))
}

// SweepStale pings every subscriber and evicts the ones that have not
// been seen within the liveness timeout. Returns the evicted ids.
func (h *Hub) SweepStale(now time.Time) []string {
	h.mu.Lock()
	var stale []*hubSubscriber
	var live []*hubSubscriber
	for _, sub := range h.subscribers {
		sub.mu.Lock()
		seen := sub.lastSeen
		sub.mu.Unlock()
		if now.Sub(seen) > h.livenessTimeout {
			stale = append(stale, sub)
			delete(h.subscribers, sub.id)
		} else {
			live = append(live, sub)
		}
	}
	h.mu.Unlock()

	evicted := make([]string, 0, len(stale))
	for _, sub := range stale {
		sub.conn.Close()
		evicted = append(evicted, sub.id)
		h.logger.Printf("evicting %s after liveness timeout", sub.id)
		loggingnetwork.SubscriberEvicted(context.Background(), h.publisher, sub.id, loggingnetwork.DisconnectPayload{Reason: "liveness_timeout"})
	}

	deadline := now.Add(writeWait)
	for _, sub := range live {
		sub.mu.Lock()
		sub.conn.WriteControl(websocket.PingMessage, nil, deadline)
		sub.mu.Unlock()
	}
	return evicted
}

// RunLivenessSweep drives the periodic sweep until stop closes.
func (h *Hub) RunLivenessSweep(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.SweepStale(h.clock.Now())
		}
	}
}

// Count reports the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// SubscriberDiagnostics is one row of the diagnostics endpoint.
type SubscriberDiagnostics struct {
	Ver      int    `json:"ver"`
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	LastSeen int64  `json:"lastSeen"`
}

// DiagnosticsSnapshot exposes liveness data for the diagnostics endpoint.
func (h *Hub) DiagnosticsSnapshot() []SubscriberDiagnostics {
	h.mu.Lock()
	defer h.mu.Unlock()
	rows := make([]SubscriberDiagnostics, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		sub.mu.Lock()
		rows = append(rows, SubscriberDiagnostics{
			Ver:      ProtocolVersion,
			ID:       sub.id,
			Role:     sub.role,
			LastSeen: sub.lastSeen.UnixMilli(),
		})
		sub.mu.Unlock()
	}
	return rows
}

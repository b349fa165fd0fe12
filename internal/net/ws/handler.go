package ws

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	server "stream-rush/server"
	"stream-rush/server/internal/donation"
)

type HandlerConfig struct {
	Logger *log.Logger
}

// Handler owns the websocket boundary: upgrade, registration with the
// hub, and the per-connection read loop. It forwards donations to the
// pipeline and answers admission rejects on the connection that sent
// them.
type Handler struct {
	pipeline *server.Pipeline
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewHandler(pipeline *server.Pipeline, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		pipeline: pipeline,
		logger:   logger,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed: %v", err)
		return
	}

	hub := h.pipeline.Hub()
	id := hub.Register(conn)
	conn.SetPongHandler(func(string) error {
		hub.Touch(id)
		return nil
	})

	if err := h.pipeline.SendSnapshot(id); err != nil {
		hub.Unregister(id, "initial_write_failed")
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			hub.Unregister(id, "read_error")
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", id, err)
			continue
		}

		switch msg.Type {
		case "identify":
			role, ok := server.ParseRole(msg.Role)
			if !ok {
				h.logger.Printf("ignoring unknown role %q from %s", msg.Role, id)
				continue
			}
			hub.Identify(id, role)
		case "donation":
			h.handleDonation(id, msg)
		case "gamestate_update":
			if !h.fromPlayClient(id) {
				h.logger.Printf("ignoring gamestate report from non-client %s", id)
				continue
			}
			h.pipeline.MergeClientState(msg.Health, msg.Score, msg.Wave)
		case "spawn_handled":
			if !h.fromPlayClient(id) {
				continue
			}
			if msg.SpawnID == "" {
				continue
			}
			h.pipeline.SpawnHandled(msg.SpawnID)
		case "game_over":
			if !h.fromPlayClient(id) {
				continue
			}
			h.pipeline.GameOver()
		case "ping":
			hub.Touch(id)
			pong := pongMessage{
				Ver:        server.ProtocolVersion,
				Type:       "pong",
				ServerTime: time.Now().UnixMilli(),
				ClientTime: msg.SentAt,
			}
			if err := hub.Send(id, pong); err != nil {
				hub.Unregister(id, "write_failed")
				return
			}
		case "pong":
			hub.Touch(id)
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, id)
		}
	}
}

// handleDonation builds the event, runs admission, and reports a
// rejection back on the originating connection rather than swallowing
// it.
func (h *Handler) handleDonation(subscriberID string, msg clientMessage) {
	eventID := msg.ID
	if eventID == "" {
		eventID = donation.NewID()
	}
	ev := donation.Event{
		ID:               eventID,
		ActorID:          msg.ActorID,
		ActorName:        msg.ActorName,
		AmountMinorUnits: msg.AmountMinorUnits,
		Kind:             donation.Kind(msg.Kind),
		Params:           msg.Parameters,
		CreatedAt:        time.Now(),
	}

	outcome := h.pipeline.SubmitDonation(ev)
	if outcome.Admitted {
		return
	}

	reject := server.DonationReject{
		Ver:              server.ProtocolVersion,
		Type:             "donation_reject",
		ID:               eventID,
		Reason:           outcome.Reason,
		RetryAfterMillis: outcome.RetryAfterMillis,
	}
	if err := h.pipeline.Hub().Send(subscriberID, reject); err != nil {
		h.pipeline.Hub().Unregister(subscriberID, "write_failed")
	}
}

func (h *Handler) fromPlayClient(id string) bool {
	role, ok := h.pipeline.Hub().Role(id)
	return ok && role == server.RolePlayClient
}

type clientMessage struct {
	Ver  int    `json:"ver,omitempty"`
	Type string `json:"type"`

	// identify
	Role string `json:"role,omitempty"`

	// donation
	ID               string          `json:"id,omitempty"`
	ActorID          string          `json:"actorId,omitempty"`
	ActorName        string          `json:"actorName,omitempty"`
	AmountMinorUnits int64           `json:"amountMinorUnits,omitempty"`
	Kind             string          `json:"kind,omitempty"`
	Parameters       donation.Params `json:"parameters,omitempty"`

	// gamestate_update
	Health *int   `json:"health,omitempty"`
	Score  *int64 `json:"score,omitempty"`
	Wave   *int   `json:"wave,omitempty"`

	// spawn_handled
	SpawnID string `json:"spawnId,omitempty"`

	// ping
	SentAt int64 `json:"sentAt,omitempty"`
}

type pongMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}

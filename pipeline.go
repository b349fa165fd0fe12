package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"stream-rush/server/internal/admission"
	"stream-rush/server/internal/donation"
	"stream-rush/server/internal/queue"
	"stream-rush/server/internal/session"
	"stream-rush/server/internal/telemetry"
	"stream-rush/server/logging"
	loggingpipeline "stream-rush/server/logging/pipeline"
)

// RejectInvalid marks a malformed donation payload; it never reaches
// the queue.
const RejectInvalid = "invalid"

// RejectQueueFull marks an admissible donation that found no queue
// slot; the gate is not consulted so no cooldown is consumed.
const RejectQueueFull = "queue_full"

// SubmitOutcome reports an admission decision to the origin.
type SubmitOutcome struct {
	Admitted         bool
	Reason           string
	RetryAfterMillis int64
}

// PipelineConfig wires the pipeline's collaborators and cadences.
type PipelineConfig struct {
	Gate      *admission.Gate
	Queue     *queue.Queue
	Session   *session.Machine
	Hub       *Hub
	Clock     logging.Clock
	Logger    telemetry.Logger
	Publisher logging.Publisher

	ProcessInterval time.Duration
	OverlayInterval time.Duration
}

// Pipeline is the composition of gate, queue, session, and hub. Every
// state mutation flows through it under one mutex, which keeps the
// admission check-then-mutate path from interleaving with concurrent
// donations and lets the session observer know which role originated
// a change.
type Pipeline struct {
	mu      sync.Mutex
	gate    *admission.Gate
	queue   *queue.Queue
	session *session.Machine
	hub     *Hub

	clock     logging.Clock
	logger    telemetry.Logger
	publisher logging.Publisher

	processInterval time.Duration
	overlayInterval time.Duration

	inFlight atomic.Bool
	tick     atomic.Uint64

	// origin tags the role whose message caused the mutation currently
	// under p.mu, so broadcasts can exclude the producing role. Only
	// read by the session observer, which runs synchronously inside
	// the mutation.
	origin Role

	lastDonation *DonationSummary
}

// NewPipeline wires the components. All collaborators are required
// except Logger and Publisher.
func NewPipeline(cfg PipelineConfig) *Pipeline {
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
	processInterval := cfg.ProcessInterval
	if processInterval <= 0 {
		processInterval = defaultProcessInterval
	}
	overlayInterval := cfg.OverlayInterval
	if overlayInterval <= 0 {
		overlayInterval = defaultOverlayInterval
	}
	p := &Pipeline{
		gate:            cfg.Gate,
		queue:           cfg.Queue,
		session:         cfg.Session,
		hub:             cfg.Hub,
		clock:           clock,
		logger:          logger,
		publisher:       publisher,
		processInterval: processInterval,
		overlayInterval: overlayInterval,
	}
	p.session.AddObserver(p.broadcastState)
	return p
}

// broadcastState republishes every session snapshot the instant it is
// produced. Runs synchronously inside the mutating operation, so
// "state changed" and "broadcast triggered" cannot drift apart.
func (p *Pipeline) broadcastState(snap session.Snapshot) {
	p.hub.Publish(GamestateMessage{
		Ver:        ProtocolVersion,
		Type:       "gamestate_update",
		State:      snap,
		ServerTime: p.clock.Now().UnixMilli(),
	}, PublishOptions{ExcludeRole: p.excludeFor(p.origin)})
}

// excludeFor suppresses gamestate echoes to the role that produced
// the change. Only the play client authoritatively reports state, so
// it is the only role ever excluded.
func (p *Pipeline) excludeFor(origin Role) Role {
	if origin == RolePlayClient {
		return RolePlayClient
	}
	return ""
}

// SubmitDonation validates and admits a donation. The queue capacity
// is checked before the gate so a full queue never burns a cooldown.
func (p *Pipeline) SubmitDonation(ev donation.Event) SubmitOutcome {
	if err := donation.Validate(ev); err != nil {
		p.logger.Printf("rejecting malformed donation: %v", err)
		return SubmitOutcome{Reason: RejectInvalid}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	tick := p.tick.Load()
	actor := logging.EntityRef{ID: ev.ActorID, Kind: logging.EntityKindDonor}

	if p.queue.Len() >= p.queue.Capacity() {
		loggingpipeline.QueueOverflow(context.Background(), p.publisher, tick, actor, ev.ID)
		return SubmitOutcome{Reason: RejectQueueFull}
	}

	result := p.gate.TryAdmit(ev, now)
	if !result.Admitted {
		loggingpipeline.AdmissionRejected(context.Background(), p.publisher, tick, actor, ev.ID, loggingpipeline.RejectedPayload{
			Kind:             string(ev.Kind),
			Reason:           result.Reason,
			RetryAfterMillis: result.RetryAfter.Milliseconds(),
		})
		return SubmitOutcome{
			Reason:           result.Reason,
			RetryAfterMillis: result.RetryAfter.Milliseconds(),
		}
	}

	p.queue.Enqueue(ev)
	loggingpipeline.DonationAdmitted(context.Background(), p.publisher, tick, actor, ev.ID, loggingpipeline.AdmittedPayload{
		Kind:             string(ev.Kind),
		AmountMinorUnits: ev.AmountMinorUnits,
		QueueLength:      p.queue.Len(),
	})
	return SubmitOutcome{Admitted: true}
}

// ProcessNext runs one processor tick: dequeue at most one event,
// apply its effect, and broadcast the event alongside the state the
// observer already published. A tick still in flight is skipped
// outright rather than overlapped. Dispatch failures drop the event
// and never stop the loop.
func (p *Pipeline) ProcessNext() bool {
	if !p.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer p.inFlight.Store(false)

	tick := p.tick.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session.Status() != session.StatusRunning {
		return false
	}
	ev, ok := p.queue.Dequeue()
	if !ok {
		return false
	}

	if !p.applyEvent(ev, tick) {
		return false
	}

	p.lastDonation = &DonationSummary{
		ActorName:        ev.ActorName,
		AmountMinorUnits: ev.AmountMinorUnits,
		Kind:             ev.Kind,
	}
	p.hub.Publish(DonationEventMessage{
		Ver:        ProtocolVersion,
		Type:       "donation_event",
		Event:      ev,
		ServerTime: p.clock.Now().UnixMilli(),
	}, PublishOptions{})
	return true
}

// applyEvent dispatches by kind to the matching session operation.
// The session observer broadcasts the resulting snapshot before the
// operation returns.
func (p *Pipeline) applyEvent(ev donation.Event, tick uint64) bool {
	switch ev.Kind {
	case donation.KindBoost:
		p.session.ApplyBoost(ev.Params.BoostPercent, ev.Params.DurationSeconds)
	case donation.KindHeal:
		p.session.ApplyHeal(ev.Params.HealAmount)
	case donation.KindSpawnEnemy, donation.KindSpawnDragon:
		p.session.AddPendingSpawn(ev.EnemyType(), ev.ActorName, ev.ID)
	default:
		p.logger.Printf("dropping event %s with unexpected kind %q", ev.ID, ev.Kind)
		loggingpipeline.ProcessingFailed(context.Background(), p.publisher, tick, logging.EntityRef{ID: ev.ActorID, Kind: logging.EntityKindDonor}, ev.ID, loggingpipeline.ProcessingFailedPayload{
			Kind:   string(ev.Kind),
			Detail: "unexpected kind",
		})
		return false
	}
	return true
}

// RunProcessor drives the fixed-rate processing tick until stop closes.
func (p *Pipeline) RunProcessor(stop <-chan struct{}) {
	ticker := time.NewTicker(p.processInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.ProcessNext()
		}
	}
}

// BroadcastOverlay pushes the display projection to every non-play
// subscriber. Runs on its own cadence so silent periods still refresh
// overlay displays.
func (p *Pipeline) BroadcastOverlay() {
	p.mu.Lock()
	last := p.lastDonation
	p.mu.Unlock()

	now := p.clock.Now()
	snap := p.session.Snapshot()
	p.hub.Publish(OverlayMessage{
		Ver:                   ProtocolVersion,
		Type:                  "overlay_update",
		Score:                 snap.Score,
		Wave:                  snap.Wave,
		Health:                snap.Health,
		BoostActive:           snap.Boost.Active,
		BoostSecondsRemaining: snap.BoostSecondsRemaining(now),
		LastDonation:          last,
		ServerTime:            now.UnixMilli(),
	}, PublishOptions{ExcludeRole: RolePlayClient})
}

// RunOverlayBroadcast drives the overlay refresh tick until stop closes.
func (p *Pipeline) RunOverlayBroadcast(stop <-chan struct{}) {
	ticker := time.NewTicker(p.overlayInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.BroadcastOverlay()
		}
	}
}

// RunActorSweep purges idle per-actor rate windows on the liveness
// cadence; the purge never runs in the admission hot path.
func (p *Pipeline) RunActorSweep(interval time.Duration, stop <-chan struct{}) {
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
			p.gate.SweepActors(p.clock.Now())
		}
	}
}

// MergeClientState folds a play-client gamestate report into the
// session through clamped setters. The resulting broadcast excludes
// the play client itself.
func (p *Pipeline) MergeClientState(health *int, score *int64, wave *int) session.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.origin = RolePlayClient
	defer func() { p.origin = RoleUnknown }()
	return p.session.MergeClientState(health, score, wave)
}

// GameOver resets the session on the client's final report.
func (p *Pipeline) GameOver() session.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.origin = RolePlayClient
	defer func() { p.origin = RoleUnknown }()
	snap := p.session.Reset()
	p.logTransition("game_over", snap)
	return snap
}

// SpawnHandled removes a pending spawn the client reports as spawned.
func (p *Pipeline) SpawnHandled(spawnID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.origin = RolePlayClient
	defer func() { p.origin = RoleUnknown }()
	_, removed := p.session.RemoveSpawn(spawnID)
	return removed
}

// Admin operations map 1:1 onto the session lifecycle. Reset also
// clears cooldowns so a fresh session starts from a clean gate.

func (p *Pipeline) AdminStart() session.Snapshot {
	return p.adminOp("start", func() session.Snapshot { return p.session.Start() })
}

func (p *Pipeline) AdminStop() session.Snapshot {
	return p.adminOp("stop", func() session.Snapshot { return p.session.Stop() })
}

func (p *Pipeline) AdminPause() session.Snapshot {
	return p.adminOp("pause", func() session.Snapshot { return p.session.Pause() })
}

func (p *Pipeline) AdminResume() session.Snapshot {
	return p.adminOp("resume", func() session.Snapshot { return p.session.Resume() })
}

func (p *Pipeline) AdminReset() session.Snapshot {
	return p.adminOp("reset", func() session.Snapshot {
		p.gate.ResetCooldowns()
		return p.session.Reset()
	})
}

func (p *Pipeline) adminOp(name string, op func() session.Snapshot) session.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := op()
	p.logTransition(name, snap)
	return snap
}

func (p *Pipeline) logTransition(operation string, snap session.Snapshot) {
	loggingpipeline.SessionTransition(context.Background(), p.publisher, p.tick.Load(), loggingpipeline.TransitionPayload{
		Operation: operation,
		Status:    string(snap.Status),
	})
}

// CancelQueued drops a queued donation by id (administrative).
func (p *Pipeline) CancelQueued(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.RemoveByID(id)
}

// Stats is the read-only pipeline snapshot for the admin surface.
type Stats struct {
	Ver         int                        `json:"ver"`
	Session     session.Snapshot           `json:"session"`
	QueueLength int                        `json:"queueLength"`
	Rate        admission.Status           `json:"rate"`
	Cooldowns   []admission.CooldownStatus `json:"cooldowns"`
	Subscribers int                        `json:"subscribers"`
	ServerTime  int64                      `json:"serverTime"`
}

// StatsSnapshot assembles the stats endpoint payload.
func (p *Pipeline) StatsSnapshot() Stats {
	now := p.clock.Now()
	rate, cooldowns := p.gate.Snapshot(now)
	return Stats{
		Ver:         ProtocolVersion,
		Session:     p.session.Snapshot(),
		QueueLength: p.queue.Len(),
		Rate:        rate,
		Cooldowns:   cooldowns,
		Subscribers: p.hub.Count(),
		ServerTime:  now.UnixMilli(),
	}
}

// QueueLength reports the number of queued donations.
func (p *Pipeline) QueueLength() int {
	return p.queue.Len()
}

// Snapshot reads the current session state without mutating it.
func (p *Pipeline) Snapshot() session.Snapshot {
	return p.session.Snapshot()
}

// Hub exposes the broadcast hub for the transport boundary.
func (p *Pipeline) Hub() *Hub {
	return p.hub
}

// SendSnapshot pushes the current state to a single subscriber, used
// for the resync on connect and reconnect.
func (p *Pipeline) SendSnapshot(subscriberID string) error {
	return p.hub.Send(subscriberID, GamestateMessage{
		Ver:        ProtocolVersion,
		Type:       "gamestate_update",
		State:      p.session.Snapshot(),
		ServerTime: p.clock.Now().UnixMilli(),
	})
}

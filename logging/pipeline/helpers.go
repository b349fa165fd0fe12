package pipeline

import (
	"context"

	"stream-rush/server/logging"
)

const (
	// EventDonationAdmitted is emitted when a donation clears the gate.
	EventDonationAdmitted logging.EventType = "pipeline.donation_admitted"
	// EventAdmissionRejected is emitted when the gate refuses a donation.
	EventAdmissionRejected logging.EventType = "pipeline.admission_rejected"
	// EventQueueOverflow is emitted when an admitted donation finds the queue full.
	EventQueueOverflow logging.EventType = "pipeline.queue_overflow"
	// EventProcessingFailed is emitted when effect application drops an event.
	EventProcessingFailed logging.EventType = "pipeline.processing_failed"
	// EventSessionTransition is emitted on lifecycle status changes and resets.
	EventSessionTransition logging.EventType = "pipeline.session_transition"
)

// AdmittedPayload captures the accepted donation's shape.
type AdmittedPayload struct {
	Kind             string `json:"kind"`
	AmountMinorUnits int64  `json:"amountMinorUnits"`
	QueueLength      int    `json:"queueLength"`
}

// RejectedPayload captures why a donation was refused.
type RejectedPayload struct {
	Kind             string `json:"kind"`
	Reason           string `json:"reason"`
	RetryAfterMillis int64  `json:"retryAfterMillis"`
}

// ProcessingFailedPayload captures a dropped event during application.
type ProcessingFailedPayload struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// TransitionPayload captures a session lifecycle change.
type TransitionPayload struct {
	Operation string `json:"operation"`
	Status    string `json:"status"`
}

// DonationAdmitted publishes a gate acceptance.
func DonationAdmitted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, eventID string, payload AdmittedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDonationAdmitted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryAdmission,
		Payload:  payload,
		EventID:  eventID,
	})
}

// AdmissionRejected publishes a gate refusal.
func AdmissionRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, eventID string, payload RejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAdmissionRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryAdmission,
		Payload:  payload,
		EventID:  eventID,
	})
}

// QueueOverflow publishes a post-admission enqueue failure.
func QueueOverflow(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, eventID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventQueueOverflow,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryPipeline,
		EventID:  eventID,
	})
}

// ProcessingFailed publishes a dropped event during effect dispatch.
func ProcessingFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, eventID string, payload ProcessingFailedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventProcessingFailed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityError,
		Category: logging.CategoryPipeline,
		Payload:  payload,
		EventID:  eventID,
	})
}

// SessionTransition publishes a lifecycle status change.
func SessionTransition(ctx context.Context, pub logging.Publisher, tick uint64, payload TransitionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionTransition,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSession},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPipeline,
		Payload:  payload,
	})
}

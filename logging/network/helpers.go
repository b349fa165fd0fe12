package network

import (
	"context"

	"stream-rush/server/logging"
)

const (
	// EventSubscriberConnected is emitted when a websocket endpoint registers.
	EventSubscriberConnected logging.EventType = "network.subscriber_connected"
	// EventSubscriberIdentified is emitted when a subscriber declares its role.
	EventSubscriberIdentified logging.EventType = "network.subscriber_identified"
	// EventSubscriberDisconnected is emitted on voluntary disconnect or write failure.
	EventSubscriberDisconnected logging.EventType = "network.subscriber_disconnected"
	// EventSubscriberEvicted is emitted by the liveness sweep.
	EventSubscriberEvicted logging.EventType = "network.subscriber_evicted"
)

// DisconnectPayload captures why a subscriber was removed.
type DisconnectPayload struct {
	Reason string `json:"reason"`
}

// IdentifyPayload captures a declared role.
type IdentifyPayload struct {
	Role string `json:"role"`
}

// SubscriberConnected publishes a registration event.
func SubscriberConnected(ctx context.Context, pub logging.Publisher, subscriberID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberConnected,
		Actor:    logging.EntityRef{ID: subscriberID, Kind: logging.EntityKindSubscriber},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
	})
}

// SubscriberIdentified publishes a role declaration.
func SubscriberIdentified(ctx context.Context, pub logging.Publisher, subscriberID string, payload IdentifyPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberIdentified,
		Actor:    logging.EntityRef{ID: subscriberID, Kind: logging.EntityKindSubscriber},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// SubscriberDisconnected publishes a removal event.
func SubscriberDisconnected(ctx context.Context, pub logging.Publisher, subscriberID string, payload DisconnectPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberDisconnected,
		Actor:    logging.EntityRef{ID: subscriberID, Kind: logging.EntityKindSubscriber},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// SubscriberEvicted publishes a liveness-sweep eviction.
func SubscriberEvicted(ctx context.Context, pub logging.Publisher, subscriberID string, payload DisconnectPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberEvicted,
		Actor:    logging.EntityRef{ID: subscriberID, Kind: logging.EntityKindSubscriber},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

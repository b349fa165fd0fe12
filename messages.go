package server

import (
	"stream-rush/server/internal/donation"
	"stream-rush/server/internal/session"
)

// DonationSummary is the compact projection of the most recently
// applied donation, rendered by overlays.
type DonationSummary struct {
	ActorName        string        `json:"actorName"`
	AmountMinorUnits int64         `json:"amountMinorUnits"`
	Kind             donation.Kind `json:"kind"`
}

// DonationEventMessage echoes an applied donation for alert rendering.
type DonationEventMessage struct {
	Ver        int            `json:"ver"`
	Type       string         `json:"type"`
	Event      donation.Event `json:"event"`
	ServerTime int64          `json:"serverTime"`
}

// GamestateMessage carries the full authoritative session snapshot.
type GamestateMessage struct {
	Ver        int              `json:"ver"`
	Type       string           `json:"type"`
	State      session.Snapshot `json:"state"`
	ServerTime int64            `json:"serverTime"`
}

// OverlayMessage is the display-only projection pushed to overlays.
type OverlayMessage struct {
	Ver                   int              `json:"ver"`
	Type                  string           `json:"type"`
	Score                 int64            `json:"score"`
	Wave                  int              `json:"wave"`
	Health                int              `json:"health"`
	BoostActive           bool             `json:"boostActive"`
	BoostSecondsRemaining int              `json:"boostSecondsRemaining"`
	LastDonation          *DonationSummary `json:"lastDonation,omitempty"`
	ServerTime            int64            `json:"serverTime"`
}

// DonationReject is sent to the originating connection when the gate
// refuses a donation, so a human-facing reason can be shown.
type DonationReject struct {
	Ver              int    `json:"ver"`
	Type             string `json:"type"`
	ID               string `json:"id"`
	Reason           string `json:"reason"`
	RetryAfterMillis int64  `json:"retryAfterMillis,omitempty"`
}

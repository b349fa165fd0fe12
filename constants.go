package server

import "time"

const (
	ProtocolVersion = 1

	writeWait = 10 * time.Second

	defaultProcessInterval = 1 * time.Second
	defaultOverlayInterval = 5 * time.Second
	defaultSweepInterval   = 30 * time.Second
	defaultLivenessTimeout = 60 * time.Second

	defaultRateWindow  = time.Minute
	defaultGlobalLimit = 30
	defaultActorLimit  = 5

	defaultQueueCapacity = 256
)

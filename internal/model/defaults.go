package model

import "time"

// Shared defaults used by both the service and dashboard binaries.
const (
	DefaultUpdateInterval = 2 * time.Second

	DefaultMaxCalls          = 1000
	DefaultMaxSnapshots      = 100
	DefaultMaxThrottleEvents = 100
	DefaultMaxErrors         = 500

	DefaultThrottleWindow = 60 * time.Second
	DefaultThrottleLimit  = 100

	// BlockedFactor is the multiple of the throttle limit at which a
	// throttle event is classified as blocked instead of throttled.
	BlockedFactor = 1.5

	DefaultSampleInterval       = 30 * time.Second
	DefaultProbeTimeout         = 3 * time.Second
	DefaultSlowThreshold        = 2 * time.Second
	DefaultFailureThreshold     = 3
	DefaultMemoryWarnPercent    = 80.0
	DefaultConnectivityInterval = 5 * time.Second

	// TopEndpointLimit caps Analytics.TopEndpoints.
	TopEndpointLimit = 10
)

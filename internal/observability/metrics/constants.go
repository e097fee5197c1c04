// Package metrics defines the Prometheus collectors of the association engine.
package metrics

import "time"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Spectral fit outcomes.
const (
	FitCached = "cached" // served from the stored fit
	FitFitted = "fitted" // refitted and stored
	FitStale  = "stale"  // refitted, entry changed before it could be stored
	FitError  = "error"
)

// Histogram buckets.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketStart100us is the starting bucket for 0.1ms histograms.
	BucketStart100us = 0.0001
	// BucketFactor2 is the common exponential growth factor.
	BucketFactor2 = 2
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics server.
const ShutdownTimeout = 5 * time.Second

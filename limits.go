package main

import "time"

// Operational limits, named here so they are not scattered across the
// wiring code.
const (
	// defaultRetention is how long messages are kept before the periodic
	// sweep removes them. Message state is in-memory only; retention bounds
	// its growth.
	defaultRetention = 24 * time.Hour

	// retentionSweepInterval is how often the purge sweep runs.
	retentionSweepInterval = 1 * time.Hour

	// metricsInterval is how often registry stats are logged.
	metricsInterval = 30 * time.Second
)

// Capacities of the bootstrap rooms seeded at startup.
const (
	generalRoomCapacity = 500
	techRoomCapacity    = 200
	randomRoomCapacity  = 300
)

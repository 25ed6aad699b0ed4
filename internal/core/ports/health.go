package ports

import "context"

// HealthChecker probes one gateway dependency for the /healthz report.
type HealthChecker interface {
	// Ping verifies connectivity. Returns nil if healthy.
	Ping(ctx context.Context) error
	// Name identifies the dependency in the health response body.
	Name() string
}

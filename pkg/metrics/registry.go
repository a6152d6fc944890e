// Package metrics provides Prometheus metrics collection for the bridge.
//
// All metrics are optional. If the registry is never initialized, the
// constructors return nil and callers fall back to no-op behavior, so the
// bridge can run with zero metrics overhead (the common case for a
// per-session native-messaging process).
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	bridgeMetrics := prometheus.NewBridgeMetrics()
//
//	// Or use nil for no-op behavior
//	d := bridge.NewDispatcher(policyStore, cfg, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all bridge metrics.
	// Protected by registryOnce for write-once, read-many access.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// This must be called before creating any metrics instances. Safe to call
// multiple times; subsequent calls are ignored. If not called, GetRegistry
// returns nil and the metrics constructors return no-op implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil if
// InitRegistry has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}

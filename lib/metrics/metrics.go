// Package metrics exposes prometheus instrumentation for the
// namespace core. Embedders mount Handler on whatever HTTP surface
// they already run.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Resolutions counts NameToChan calls by access mode.
	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ns9_name_resolutions_total",
		Help: "Name to channel resolutions started, by access mode",
	}, []string{"mode"})

	// ResolutionErrors counts failed NameToChan calls.
	ResolutionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ns9_name_resolution_errors_total",
		Help: "Name to channel resolutions that returned an error",
	})

	// WalkSteps counts name elements walked through devices.
	WalkSteps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ns9_walk_steps_total",
		Help: "Name elements walked through devices",
	})

	// MountCrossings counts mount points crossed during walks.
	MountCrossings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ns9_mount_crossings_total",
		Help: "Mount points crossed during resolution",
	})

	// UnionFallbacks counts walks retried against a later union member.
	UnionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ns9_union_fallbacks_total",
		Help: "Device walks retried against a later union member",
	})

	// Mounts counts mount/bind operations.
	Mounts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ns9_mounts_total",
		Help: "Mount and bind operations applied to a namespace",
	})

	// Unmounts counts unmount operations.
	Unmounts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ns9_unmounts_total",
		Help: "Unmount operations applied to a namespace",
	})

	// ChansAllocated counts channel records ever allocated.
	ChansAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ns9_chans_allocated_total",
		Help: "Channel records allocated, including free list reuse",
	})

	// ChansLive tracks channels currently held by some owner.
	ChansLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ns9_chans_live",
		Help: "Channel records currently in use",
	})
)

// Handler returns the prometheus scrape handler for the default
// registry, which the counters above register into.
func Handler() http.Handler {
	return promhttp.Handler()
}

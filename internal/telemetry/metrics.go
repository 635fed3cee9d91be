package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ExchangesStarted counts TXOP attempts that actually transmitted
	ExchangesStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hemac",
			Name:      "exchanges_started_total",
			Help:      "Total number of frame exchanges started",
		},
		[]string{"ac", "format"},
	)

	// ExchangesSucceeded counts exchanges acknowledged in time
	ExchangesSucceeded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hemac",
			Name:      "exchanges_succeeded_total",
			Help:      "Total number of frame exchanges completed successfully",
		},
		[]string{"ac"},
	)

	// ExchangesFailed counts exchanges whose response timer fired with no
	// usable response
	ExchangesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hemac",
			Name:      "exchanges_failed_total",
			Help:      "Total number of frame exchanges reported failed",
		},
		[]string{"ac", "reason"},
	)

	// TriggerFramesBuilt counts uplink solicitations by trigger type
	TriggerFramesBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hemac",
			Name:      "trigger_frames_built_total",
			Help:      "Total number of trigger frames built by the scheduler",
		},
		[]string{"type"},
	)

	// MuFormatSelected counts scheduler format decisions
	MuFormatSelected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hemac",
			Name:      "mu_format_selected_total",
			Help:      "Total number of multi-user format selections",
		},
		[]string{"format"},
	)

	// ResponseTimeouts counts expired response timers by kind
	ResponseTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hemac",
			Name:      "response_timeouts_total",
			Help:      "Total number of response timeouts",
		},
		[]string{"kind"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		// Register metrics, ignoring errors if already registered
		prometheus.DefaultRegisterer.Register(ExchangesStarted)
		prometheus.DefaultRegisterer.Register(ExchangesSucceeded)
		prometheus.DefaultRegisterer.Register(ExchangesFailed)
		prometheus.DefaultRegisterer.Register(TriggerFramesBuilt)
		prometheus.DefaultRegisterer.Register(MuFormatSelected)
		prometheus.DefaultRegisterer.Register(ResponseTimeouts)
	})
}

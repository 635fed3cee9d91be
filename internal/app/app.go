// Package app assembles the frame-exchange engine from its parts. It acts
// as the facade for the whole system: hosts embedding the engine construct
// one Engine per link and drive it from their discrete-event loop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lcalzada-xor/hemac/internal/config"
	"github.com/lcalzada-xor/hemac/internal/core/domain"
	"github.com/lcalzada-xor/hemac/internal/core/ports"
	"github.com/lcalzada-xor/hemac/internal/core/ru"
	"github.com/lcalzada-xor/hemac/internal/core/services/musched"
	"github.com/lcalzada-xor/hemac/internal/core/services/policy"
	"github.com/lcalzada-xor/hemac/internal/core/services/registry"
	"github.com/lcalzada-xor/hemac/internal/core/services/txop"
	"github.com/lcalzada-xor/hemac/internal/telemetry"
)

// Boundaries are the external collaborators the host must provide: the
// PHY, the rate controller, the backoff manager, the per-category transmit
// queues and the event scheduler driving the engine.
type Boundaries struct {
	Phy    ports.Phy
	Rate   ports.RateControl
	Access ports.ChannelAccess
	Events ports.EventScheduler
	Queues map[domain.AccessCategory]ports.TxQueue

	// Bandwidth of the operated channel.
	Bandwidth ru.Bandwidth
	// MultiUser enables the scheduler; leave false on single-user links.
	MultiUser bool
}

// Engine is one link's MAC engine: the candidate registry, the multi-user
// scheduler and the frame-exchange state machine, wired together.
type Engine struct {
	Config    *config.Config
	Registry  *registry.CandidateRegistry
	Scheduler *musched.Scheduler
	Exchange  *txop.Exchange

	log            *slog.Logger
	shutdownTracer func(context.Context) error
}

// New builds an engine from the configuration and the host boundaries.
func New(cfg *config.Config, b Boundaries, log *slog.Logger) (*Engine, error) {
	e := &Engine{Config: cfg, log: log}
	if err := e.bootstrap(b); err != nil {
		return nil, fmt.Errorf("engine bootstrap failed: %w", err)
	}
	return e, nil
}

// bootstrap orchestrates the initialization sequence.
func (e *Engine) bootstrap(b Boundaries) error {
	telemetry.InitMetrics()

	shutdown, err := telemetry.InitTracer()
	if err != nil {
		return fmt.Errorf("failed to init tracer: %w", err)
	}
	e.shutdownTracer = shutdown

	if b.Phy == nil || b.Rate == nil || b.Access == nil || b.Events == nil {
		return fmt.Errorf("missing boundary: phy, rate control, channel access and events are all required")
	}
	if len(b.Queues) == 0 {
		return fmt.Errorf("no transmit queues configured")
	}

	e.Registry = registry.New()
	if b.MultiUser {
		e.Scheduler = musched.New(e.Config, b.Phy, b.Rate, e.Registry, b.Bandwidth, e.log)
	}
	e.Exchange = txop.New(txop.Deps{
		Config:     e.Config,
		Phy:        b.Phy,
		Rate:       b.Rate,
		Access:     b.Access,
		Events:     b.Events,
		Queues:     b.Queues,
		Scheduler:  e.Scheduler,
		Protection: &policy.DefaultProtectionPolicy{Rate: b.Rate, Phy: b.Phy, RtsThreshold: e.Config.RtsThreshold},
		Ack:        &policy.DefaultAckPolicy{Rate: b.Rate},
		Log:        e.log,
	})

	e.log.Info("engine ready",
		"bandwidth_mhz", int(b.Bandwidth),
		"multi_user", b.MultiUser,
		"ul_ofdma", e.Config.EnableUlOfdma)
	return nil
}

// NotifyAccessGranted forwards a channel-access grant to the exchange
// engine. It reports whether anything was transmitted.
func (e *Engine) NotifyAccessGranted(ac domain.AccessCategory, limit time.Duration) bool {
	return e.Exchange.NotifyAccessGranted(ac, limit)
}

// Shutdown flushes telemetry. Call it once when the host tears the link
// down.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.shutdownTracer == nil {
		return nil
	}
	return e.shutdownTracer(ctx)
}

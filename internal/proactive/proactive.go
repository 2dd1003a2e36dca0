// Package proactive scans combined signals from the live context and the
// derived patterns, pushing insights the raw event stream would never
// surface on its own.
package proactive

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/betterclaw/betterclaw/internal/delivery"
	"github.com/betterclaw/betterclaw/internal/devicectx"
	"github.com/betterclaw/betterclaw/internal/metrics"
)

const (
	scanInterval  = time.Hour
	startupDelay  = 5 * time.Minute
	insightPrefix = "[BetterClaw] 💡"
)

// Broadcaster mirrors insights to live observers.
type Broadcaster interface {
	BroadcastInsight(payload interface{})
}

// Engine evaluates the trigger table on a schedule.
type Engine struct {
	store     *devicectx.Store
	deliverer delivery.Deliverer
	hub       Broadcaster // optional
	loc       *time.Location
	nowFn     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewEngine creates the proactive scanner. hub may be nil.
func NewEngine(store *devicectx.Store, deliverer delivery.Deliverer, hub Broadcaster) *Engine {
	return &Engine{
		store:     store,
		deliverer: deliverer,
		hub:       hub,
		loc:       time.Local,
		nowFn:     time.Now,
	}
}

// SetLocation overrides the location used for hour-of-day windows.
func (e *Engine) SetLocation(loc *time.Location) {
	if loc != nil {
		e.loc = loc
	}
}

// Start schedules the hourly scan plus one delayed scan shortly after
// startup, once patterns have had a chance to compute. Calling Start on a
// running engine is a no-op; the scanner runs under its own cancellable
// sub-context so Stop can halt it independently of the parent.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	go func() {
		startup := time.NewTimer(startupDelay)
		defer startup.Stop()
		ticker := time.NewTicker(scanInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-startup.C:
				e.Scan(runCtx)
			case <-ticker.C:
				e.Scan(runCtx)
			}
		}
	}()
}

// Stop cancels the scan loop. Safe to call on a stopped engine.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Running reports whether the scan loop is scheduled.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Scan walks the trigger table in declared order. A firing trigger's
// cooldown is persisted before delivery is attempted so a failing delivery
// command cannot cause runaway retries.
func (e *Engine) Scan(ctx context.Context) {
	deviceCtx := e.store.Get()
	patterns, err := e.store.ReadPatterns()
	if err != nil {
		log.Error().Err(err).Msg("Proactive scan could not read patterns")
		return
	}

	now := e.nowFn()
	nowEpoch := float64(now.Unix())
	localNow := now.In(e.loc)

	for _, trigger := range triggerTable {
		if last, ok := patterns.TriggerCooldowns[trigger.id]; ok && nowEpoch-last < trigger.cooldownSeconds {
			continue
		}

		insight := trigger.evaluate(deviceCtx, patterns, localNow)
		if insight == nil {
			continue
		}

		if err := e.store.RecordTriggerCooldown(trigger.id, nowEpoch); err != nil {
			log.Error().Err(err).Str("trigger", trigger.id).Msg("Failed to persist trigger cooldown, skipping insight")
			continue
		}
		if patterns.TriggerCooldowns == nil {
			patterns.TriggerCooldowns = make(map[string]float64)
		}
		patterns.TriggerCooldowns[trigger.id] = nowEpoch

		metrics.RecordInsight(trigger.id)
		log.Info().
			Str("trigger", trigger.id).
			Str("priority", insight.Priority).
			Msg("Proactive insight fired")

		if e.hub != nil {
			e.hub.BroadcastInsight(insight)
		}

		message := insightPrefix + " " + insight.Message
		if err := e.deliverer.Deliver(ctx, message); err != nil {
			metrics.RecordDeliveryFailure()
			log.Error().Err(err).Str("trigger", trigger.id).Msg("Insight delivery failed")
		}
	}
}

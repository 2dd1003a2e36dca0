// Package pipeline orchestrates event processing: context update, rule
// evaluation, optional LLM triage, journaling, and agent delivery. All
// events flow through a single serialization lane so each one is applied,
// classified, logged, and persisted as an indivisible unit.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/betterclaw/betterclaw/internal/delivery"
	"github.com/betterclaw/betterclaw/internal/devicectx"
	"github.com/betterclaw/betterclaw/internal/eventlog"
	"github.com/betterclaw/betterclaw/internal/judgment"
	"github.com/betterclaw/betterclaw/internal/metrics"
	"github.com/betterclaw/betterclaw/internal/models"
	"github.com/betterclaw/betterclaw/internal/rules"
)

const (
	queueCapacity      = 256
	cooldownRestoreAge = 24 * time.Hour
)

// Judge resolves ambiguous events to push or drop.
type Judge interface {
	Evaluate(ctx context.Context, event models.DeviceEvent, deviceCtx models.DeviceContext) models.Decision
}

// Broadcaster publishes processed decisions to live observers.
type Broadcaster interface {
	BroadcastDecision(payload interface{})
}

// Pipeline is the single consumer of the event queue.
type Pipeline struct {
	journal   *eventlog.Log
	store     *devicectx.Store
	rules     *rules.Engine
	judge     Judge
	deliverer delivery.Deliverer
	hub       Broadcaster // optional

	queue chan models.DeviceEvent
	ready chan struct{}

	nowFn func() time.Time
}

// New wires the pipeline. hub may be nil.
func New(journal *eventlog.Log, store *devicectx.Store, engine *rules.Engine, judge Judge, deliverer delivery.Deliverer, hub Broadcaster) *Pipeline {
	return &Pipeline{
		journal:   journal,
		store:     store,
		rules:     engine,
		judge:     judge,
		deliverer: deliverer,
		hub:       hub,
		queue:     make(chan models.DeviceEvent, queueCapacity),
		ready:     make(chan struct{}),
		nowFn:     time.Now,
	}
}

// Start launches the init phase and the consumer goroutine. Events queued
// before init completes wait in the lane; none are processed until the
// context snapshot is loaded and cooldowns are restored.
func (p *Pipeline) Start(ctx context.Context) {
	go func() {
		if err := p.init(ctx); err != nil {
			log.Error().Err(err).Msg("Pipeline init failed, continuing with empty state")
		}
		close(p.ready)

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-p.queue:
				metrics.QueueDepth.Set(float64(len(p.queue)))
				p.processEvent(ctx, event)
			}
		}
	}()
}

func (p *Pipeline) init(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		p.store.Load()
		return nil
	})
	g.Go(func() error {
		since := float64(p.nowFn().Add(-cooldownRestoreAge).Unix())
		entries, err := p.journal.ReadSince(since)
		if err != nil {
			return fmt.Errorf("restore cooldowns: %w", err)
		}
		p.rules.RestoreCooldowns(entries)
		return nil
	})

	return g.Wait()
}

// Initialized reports whether startup init has completed.
func (p *Pipeline) Initialized() bool {
	select {
	case <-p.ready:
		return true
	default:
		return false
	}
}

// Enqueue hands an event to the serialization lane. The caller has already
// acknowledged the event; a full lane drops it.
func (p *Pipeline) Enqueue(event models.DeviceEvent) error {
	select {
	case p.queue <- event:
		metrics.QueueDepth.Set(float64(len(p.queue)))
		return nil
	default:
		return fmt.Errorf("event queue full (%d events)", queueCapacity)
	}
}

// processEvent runs the full triage sequence for one event. The ordering is
// load-bearing: context mutation precedes journaling precedes delivery, and
// the journal records the intended decision even when delivery fails.
func (p *Pipeline) processEvent(ctx context.Context, event models.DeviceEvent) {
	p.store.UpdateFromEvent(event)

	decision := p.rules.Evaluate(event, p.store.Get())

	if decision.Action == models.ActionAmbiguous {
		verdict := p.judge.Evaluate(ctx, event, p.store.Get())
		outcome := verdict.Action
		if judgment.IsFailOpen(verdict) {
			outcome = "fail_open"
		}
		metrics.RecordJudgment(outcome)
		decision = models.Decision{
			Action: verdict.Action,
			Reason: "llm: " + verdict.Reason,
		}
	}

	entry := models.EventLogEntry{
		Event:     event,
		Decision:  decision.Action,
		Reason:    decision.Reason,
		Timestamp: float64(p.nowFn().Unix()),
	}
	if err := p.journal.Append(entry); err != nil {
		log.Error().Err(err).Str("subscription", event.SubscriptionID).Msg("Failed to append event log entry")
	}

	if decision.Action == models.ActionPush {
		p.rules.RecordFired(event.SubscriptionID, event.FiredAt)
		p.store.RecordPush()

		message := BuildMessage(event, p.store.Get())
		if err := p.deliverer.Deliver(ctx, message); err != nil {
			// No retry and no rollback; the journal already holds the
			// intended decision.
			metrics.RecordDeliveryFailure()
			log.Error().Err(err).Str("subscription", event.SubscriptionID).Msg("Agent delivery failed")
		}
	}

	if err := p.store.Save(); err != nil {
		log.Error().Err(err).Msg("Failed to persist context snapshot")
	}

	snapshot := p.store.Get()
	metrics.RecordDecision(decision.Action)
	metrics.PushesToday.Set(float64(snapshot.Meta.PushesToday))

	if p.hub != nil {
		p.hub.BroadcastDecision(map[string]interface{}{
			"subscriptionId": event.SubscriptionID,
			"source":         event.Source,
			"decision":       decision.Action,
			"reason":         decision.Reason,
			"firedAt":        event.FiredAt,
		})
	}

	log.Info().
		Str("subscription", event.SubscriptionID).
		Str("source", event.Source).
		Str("decision", decision.Action).
		Str("reason", decision.Reason).
		Msg("Event processed")
}

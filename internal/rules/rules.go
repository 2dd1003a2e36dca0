// Package rules implements the synchronous event classifier: dedup and
// cooldown enforcement, always-push subscriptions, state-aware suppression,
// and the daily push budget.
package rules

import (
	"fmt"
	"math"
	"sync"
	"time"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"

	"github.com/betterclaw/betterclaw/internal/models"
)

const defaultCooldownSeconds = 1800

// Cooldown table matched against the subscription ID in order. The geofence
// entry matches the event source instead.
var subscriptionCooldowns = []struct {
	pattern string
	seconds float64
}{
	{"*battery-low", 3600},
	{"*battery-critical", 1800},
	{"*daily-health", 82800},
}

const geofenceCooldownSeconds = 300

// Engine classifies events against the live context. The lastFired map is
// process-lifetime state, rebuildable from the event log via
// RestoreCooldowns.
type Engine struct {
	mu         sync.Mutex
	lastFired  map[string]float64 // subscriptionId -> firedAt
	pushBudget int
	loc        *time.Location
}

// NewEngine creates a rules engine with the given daily push budget.
// Time-of-day windows evaluate in local time.
func NewEngine(pushBudget int) *Engine {
	return &Engine{
		lastFired:  make(map[string]float64),
		pushBudget: pushBudget,
		loc:        time.Local,
	}
}

// SetLocation overrides the location used for hour-of-day windows.
func (e *Engine) SetLocation(loc *time.Location) {
	if loc != nil {
		e.loc = loc
	}
}

// Evaluate classifies one event. First match wins; ambiguous events go on
// to the judgment layer.
func (e *Engine) Evaluate(event models.DeviceEvent, ctx models.DeviceContext) models.Decision {
	// 1. Debug passthrough.
	if event.IsDebug() {
		return models.Decision{Action: models.ActionPush, Reason: "debug event, always push"}
	}

	// 2. Per-subscription dedup. Strict less-than: an event landing exactly
	// at the cooldown boundary is allowed.
	cooldown := e.cooldownFor(event)
	e.mu.Lock()
	last, seen := e.lastFired[event.SubscriptionID]
	e.mu.Unlock()
	if seen && event.FiredAt-last < cooldown {
		return models.Decision{
			Action: models.ActionDrop,
			Reason: fmt.Sprintf("dedup: %.0fs since last fire, cooldown %.0fs", event.FiredAt-last, cooldown),
		}
	}

	// 3. Critical battery always goes through.
	if event.SubscriptionID == "default.battery-critical" {
		return models.Decision{Action: models.ActionPush, Reason: "critical battery"}
	}

	// 4. Geofence transitions always go through.
	if event.Source == "geofence.triggered" {
		return models.Decision{Action: models.ActionPush, Reason: "geofence transition"}
	}

	// 5. Low battery: suppress when the level barely moved.
	if event.SubscriptionID == "default.battery-low" {
		if level, ok := event.DataValue("level"); ok && ctx.Device.Battery != nil {
			if math.Abs(level-ctx.Device.Battery.Level) < 0.02 {
				return models.Decision{Action: models.ActionDrop, Reason: "battery level unchanged"}
			}
		}
		return models.Decision{Action: models.ActionPush, Reason: "battery level changed"}
	}

	// 6. Daily health summary only lands in the morning window.
	if event.SubscriptionID == "default.daily-health" {
		hour := time.Unix(int64(event.FiredAt), 0).In(e.loc).Hour()
		if hour >= 6 && hour <= 10 {
			return models.Decision{Action: models.ActionPush, Reason: "morning health summary"}
		}
		return models.Decision{Action: models.ActionDefer, Reason: "outside morning window"}
	}

	// 7. Daily push budget.
	if ctx.Meta.PushesToday >= e.pushBudget {
		return models.Decision{
			Action: models.ActionDrop,
			Reason: fmt.Sprintf("push budget exhausted (%d/%d)", ctx.Meta.PushesToday, e.pushBudget),
		}
	}

	// 8. Nothing matched; let the judgment layer decide.
	return models.Decision{Action: models.ActionAmbiguous, Reason: "no matching rule"}
}

// RecordFired marks a subscription as having fired. Called only when the
// pipeline actually pushes.
func (e *Engine) RecordFired(subscriptionID string, firedAt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastFired[subscriptionID] = firedAt
}

// RestoreCooldowns rebuilds the lastFired map from past push records,
// keeping the max firedAt per subscription.
func (e *Engine) RestoreCooldowns(entries []models.EventLogEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, entry := range entries {
		if entry.Decision != models.ActionPush {
			continue
		}
		sub := entry.Event.SubscriptionID
		if entry.Event.FiredAt > e.lastFired[sub] {
			e.lastFired[sub] = entry.Event.FiredAt
		}
	}
}

// LastFired returns the recorded fire time for a subscription, if any.
func (e *Engine) LastFired(subscriptionID string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastFired[subscriptionID]
	return last, ok
}

func (e *Engine) cooldownFor(event models.DeviceEvent) float64 {
	for _, rule := range subscriptionCooldowns {
		if wildcard.Match(rule.pattern, event.SubscriptionID) {
			return rule.seconds
		}
	}
	if wildcard.Match("geofence*", event.Source) {
		return geofenceCooldownSeconds
	}
	return defaultCooldownSeconds
}

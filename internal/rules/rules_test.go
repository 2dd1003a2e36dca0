package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/betterclaw/betterclaw/internal/models"
)

func newTestEngine() *Engine {
	e := NewEngine(10)
	e.SetLocation(time.UTC)
	return e
}

func TestDebugEventsAlwaysPush(t *testing.T) {
	e := newTestEngine()
	// Even with the budget spent and a hot cooldown.
	e.RecordFired("default.battery-low", 1000)

	event := models.DeviceEvent{
		SubscriptionID: "default.battery-low",
		Source:         "device.battery",
		Data:           map[string]float64{"_debugFired": 1, "level": 0.5},
		FiredAt:        1001,
	}
	ctx := models.DeviceContext{}
	ctx.Meta.PushesToday = 10

	decision := e.Evaluate(event, ctx)
	assert.Equal(t, models.ActionPush, decision.Action)
}

func TestDedupStrictBoundary(t *testing.T) {
	e := newTestEngine()
	e.RecordFired("default.battery-low", 1000)

	event := models.DeviceEvent{
		SubscriptionID: "default.battery-low",
		Source:         "device.battery",
		Data:           map[string]float64{"level": 0.25},
	}
	ctx := models.DeviceContext{Device: models.DeviceState{Battery: &models.BatteryState{Level: 0.5}}}

	// One second inside the 3600s cooldown.
	event.FiredAt = 1000 + 3599
	decision := e.Evaluate(event, ctx)
	assert.Equal(t, models.ActionDrop, decision.Action)
	assert.Contains(t, decision.Reason, "dedup")

	// Exactly at the boundary the event is allowed through.
	event.FiredAt = 1000 + 3600
	decision = e.Evaluate(event, ctx)
	assert.NotEqual(t, models.ActionDrop, decision.Action)
}

func TestDedupNotTriggeredWithoutPriorFire(t *testing.T) {
	e := newTestEngine()

	decision := e.Evaluate(models.DeviceEvent{
		SubscriptionID: "default.battery-critical",
		Source:         "device.battery",
		FiredAt:        100,
	}, models.DeviceContext{})
	assert.Equal(t, models.ActionPush, decision.Action)
}

func TestCriticalBatteryAlwaysPushes(t *testing.T) {
	e := newTestEngine()
	ctx := models.DeviceContext{}
	ctx.Meta.PushesToday = 10 // budget spent

	decision := e.Evaluate(models.DeviceEvent{
		SubscriptionID: "default.battery-critical",
		Source:         "device.battery",
		Data:           map[string]float64{"level": 0.05},
		FiredAt:        100,
	}, ctx)
	assert.Equal(t, models.ActionPush, decision.Action)
	assert.Equal(t, "critical battery", decision.Reason)
}

func TestGeofencePushes(t *testing.T) {
	e := newTestEngine()

	decision := e.Evaluate(models.DeviceEvent{
		SubscriptionID: "geo.home",
		Source:         "geofence.triggered",
		Metadata:       map[string]string{"zoneName": "Home", "transition": "enter"},
		FiredAt:        100,
	}, models.DeviceContext{})
	assert.Equal(t, models.ActionPush, decision.Action)
}

func TestLowBatteryLevelUnchanged(t *testing.T) {
	e := newTestEngine()
	ctx := models.DeviceContext{Device: models.DeviceState{Battery: &models.BatteryState{Level: 0.29}}}

	decision := e.Evaluate(models.DeviceEvent{
		SubscriptionID: "default.battery-low",
		Source:         "device.battery",
		Data:           map[string]float64{"level": 0.28},
		FiredAt:        100,
	}, ctx)
	assert.Equal(t, models.ActionDrop, decision.Action)
	assert.Equal(t, "battery level unchanged", decision.Reason)

	decision = e.Evaluate(models.DeviceEvent{
		SubscriptionID: "default.battery-low",
		Source:         "device.battery",
		Data:           map[string]float64{"level": 0.20},
		FiredAt:        100,
	}, ctx)
	assert.Equal(t, models.ActionPush, decision.Action)
}

func TestDailyHealthMorningWindow(t *testing.T) {
	e := newTestEngine()

	morning := float64(time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC).Unix())
	decision := e.Evaluate(models.DeviceEvent{
		SubscriptionID: "default.daily-health",
		Source:         "health.summary",
		FiredAt:        morning,
	}, models.DeviceContext{})
	assert.Equal(t, models.ActionPush, decision.Action)

	noon := float64(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC).Unix())
	decision = e.Evaluate(models.DeviceEvent{
		SubscriptionID: "default.daily-health",
		Source:         "health.summary",
		FiredAt:        noon,
	}, models.DeviceContext{})
	assert.Equal(t, models.ActionDefer, decision.Action)
	assert.Equal(t, "outside morning window", decision.Reason)
}

func TestPushBudgetExhausted(t *testing.T) {
	e := newTestEngine()
	ctx := models.DeviceContext{}
	ctx.Meta.PushesToday = 10

	decision := e.Evaluate(models.DeviceEvent{
		SubscriptionID: "custom.something",
		Source:         "custom.source",
		FiredAt:        100,
	}, ctx)
	assert.Equal(t, models.ActionDrop, decision.Action)
	assert.Contains(t, decision.Reason, "push budget exhausted")
}

func TestUnmatchedEventIsAmbiguous(t *testing.T) {
	e := newTestEngine()

	decision := e.Evaluate(models.DeviceEvent{
		SubscriptionID: "custom.something",
		Source:         "custom.source",
		FiredAt:        100,
	}, models.DeviceContext{})
	assert.Equal(t, models.ActionAmbiguous, decision.Action)
}

func TestCooldownForWildcards(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name     string
		event    models.DeviceEvent
		expected float64
	}{
		{"default battery-low", models.DeviceEvent{SubscriptionID: "default.battery-low", Source: "device.battery"}, 3600},
		{"custom battery-low suffix", models.DeviceEvent{SubscriptionID: "my.custom.battery-low", Source: "device.battery"}, 3600},
		{"battery-critical", models.DeviceEvent{SubscriptionID: "default.battery-critical", Source: "device.battery"}, 1800},
		{"daily-health", models.DeviceEvent{SubscriptionID: "default.daily-health", Source: "health.summary"}, 82800},
		{"geofence by source", models.DeviceEvent{SubscriptionID: "geo.home", Source: "geofence.triggered"}, 300},
		{"fallback", models.DeviceEvent{SubscriptionID: "custom.x", Source: "custom.source"}, 1800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.cooldownFor(tt.event))
		})
	}
}

func TestRestoreCooldownsKeepsMaxPerSubscription(t *testing.T) {
	e := newTestEngine()

	e.RestoreCooldowns([]models.EventLogEntry{
		{Event: models.DeviceEvent{SubscriptionID: "a", FiredAt: 100}, Decision: models.ActionPush},
		{Event: models.DeviceEvent{SubscriptionID: "a", FiredAt: 300}, Decision: models.ActionPush},
		{Event: models.DeviceEvent{SubscriptionID: "a", FiredAt: 200}, Decision: models.ActionPush},
		{Event: models.DeviceEvent{SubscriptionID: "b", FiredAt: 900}, Decision: models.ActionDrop},
	})

	last, ok := e.LastFired("a")
	assert.True(t, ok)
	assert.Equal(t, float64(300), last)

	_, ok = e.LastFired("b")
	assert.False(t, ok, "non-push entries do not restore cooldowns")
}

package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/betterclaw/betterclaw/internal/models"
)

func TestBuildMessageBattery(t *testing.T) {
	event := models.DeviceEvent{
		SubscriptionID: "default.battery-low",
		Source:         "device.battery",
		Data:           map[string]float64{"level": 0.18, "isLowPowerMode": 1},
		Metadata:       map[string]string{"state": "unplugged"},
	}
	ctx := models.DeviceContext{}
	ctx.Device.Battery = &models.BatteryState{Level: 0.18}
	ctx.Activity.CurrentZone = models.StringPtr("Office")

	msg := BuildMessage(event, ctx)
	assert.Contains(t, msg, "[BetterClaw] 🔋 Battery at 18% (unplugged), low power mode on")
	assert.Contains(t, msg, "Context: at Office, battery 18%")
	assert.NotContains(t, msg, "debug")
}

func TestBuildMessageDebugPrefix(t *testing.T) {
	event := models.DeviceEvent{
		SubscriptionID: "default.battery-low",
		Source:         "device.battery",
		Data:           map[string]float64{"_debugFired": 1, "level": 0.5},
	}

	msg := BuildMessage(event, models.DeviceContext{})
	assert.Contains(t, msg, "[BetterClaw debug]")
}

func TestBuildMessageGeofence(t *testing.T) {
	enter := models.DeviceEvent{
		SubscriptionID: "geo.home",
		Source:         "geofence.triggered",
		Metadata:       map[string]string{"zoneName": "Home", "transition": "enter"},
	}
	assert.Contains(t, BuildMessage(enter, models.DeviceContext{}), "📍 Arrived at Home")

	exit := models.DeviceEvent{
		SubscriptionID: "geo.home",
		Source:         "geofence.triggered",
		Metadata:       map[string]string{"zoneName": "Home", "transition": "exit"},
	}
	assert.Contains(t, BuildMessage(exit, models.DeviceContext{}), "📍 Left Home")

	unnamed := models.DeviceEvent{
		SubscriptionID: "geo.x",
		Source:         "geofence.triggered",
		Metadata:       map[string]string{"transition": "enter"},
	}
	assert.Contains(t, BuildMessage(unnamed, models.DeviceContext{}), "📍 Arrived at a zone")
}

func TestBuildMessageHealth(t *testing.T) {
	event := models.DeviceEvent{
		SubscriptionID: "default.daily-health",
		Source:         "health.summary",
		Data: map[string]float64{
			"stepsToday":           8421,
			"sleepDurationSeconds": 27000,
			"restingHeartRate":     57,
		},
	}

	msg := BuildMessage(event, models.DeviceContext{})
	assert.Contains(t, msg, "🏃 8421 steps, 7.5h sleep, resting HR 57")
}

func TestBuildMessageUnknownSource(t *testing.T) {
	event := models.DeviceEvent{
		SubscriptionID: "custom.widget",
		Source:         "custom.source",
	}

	msg := BuildMessage(event, models.DeviceContext{})
	assert.Equal(t, "[BetterClaw] 📱 custom.widget", msg, "no context summary when the context is empty")
}

func TestZoneDuration(t *testing.T) {
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

	ctx := models.DeviceContext{}
	assert.Empty(t, ZoneDuration(ctx, now))

	entered := float64(now.Add(-95 * time.Minute).Unix())
	ctx.Activity.ZoneEnteredAt = &entered
	assert.Equal(t, "1h35m", ZoneDuration(ctx, now))

	entered = float64(now.Add(-20 * time.Minute).Unix())
	assert.Equal(t, "20m", ZoneDuration(ctx, now))

	future := float64(now.Add(time.Hour).Unix())
	ctx.Activity.ZoneEnteredAt = &future
	assert.Empty(t, ZoneDuration(ctx, now))
}

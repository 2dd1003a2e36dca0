package devicectx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/betterclaw/betterclaw/internal/models"
)

func TestSummarizeEmptyContext(t *testing.T) {
	out := Summarize(models.DeviceContext{}, time.Now())

	assert.Contains(t, out, "Battery: unknown")
	assert.Contains(t, out, "Location: unknown")
	assert.Contains(t, out, "Zone: none")
	assert.Contains(t, out, "Events today: 0, pushes: 0")
}

func TestSummarizePopulatedContext(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	enteredAt := float64(now.Add(-90 * time.Minute).Unix())

	ctx := models.DeviceContext{}
	ctx.Device.Battery = &models.BatteryState{Level: 0.63, State: "unplugged", IsLowPowerMode: true}
	ctx.Device.Location = &models.LocationState{Label: "Office", Latitude: 52.1, Longitude: 4.3}
	ctx.Device.Health.StepsToday = models.Float64Ptr(4821)
	ctx.Activity.CurrentZone = models.StringPtr("Office")
	ctx.Activity.ZoneEnteredAt = &enteredAt
	ctx.Meta.EventsToday = 14
	ctx.Meta.PushesToday = 3

	out := Summarize(ctx, now)

	assert.Contains(t, out, "Battery: 63% (unplugged), low power mode")
	assert.Contains(t, out, "Location: Office")
	assert.Contains(t, out, "Zone: Office (for 1h30m)")
	assert.Contains(t, out, "Steps today: 4821")
	assert.Contains(t, out, "Events today: 14, pushes: 3")
}

func TestSummarizeCoordinatesWhenUnlabeled(t *testing.T) {
	ctx := models.DeviceContext{}
	ctx.Device.Location = &models.LocationState{Latitude: 52.3702, Longitude: 4.8952}

	out := Summarize(ctx, time.Now())
	assert.Contains(t, out, "Location: 52.3702, 4.8952")
}

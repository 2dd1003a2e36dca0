package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/betterclaw/betterclaw/internal/models"
)

const (
	livePrefix  = "[BetterClaw]"
	debugPrefix = "[BetterClaw debug]"
)

// BuildMessage renders the enriched agent message: an emoji-prefixed body
// for the event source, a one-line context summary, and the outer prefix.
// Debug events carry a distinct prefix so test traffic is obvious in the
// agent session.
func BuildMessage(event models.DeviceEvent, deviceCtx models.DeviceContext) string {
	prefix := livePrefix
	if event.IsDebug() {
		prefix = debugPrefix
	}

	body := eventBody(event)
	summary := contextSummary(deviceCtx)

	if summary == "" {
		return fmt.Sprintf("%s %s", prefix, body)
	}
	return fmt.Sprintf("%s %s\n%s", prefix, body, summary)
}

func eventBody(event models.DeviceEvent) string {
	switch {
	case event.Source == "device.battery":
		return batteryBody(event)
	case event.Source == "geofence.triggered":
		return geofenceBody(event)
	case strings.HasPrefix(event.Source, "health"):
		return healthBody(event)
	default:
		return fmt.Sprintf("📱 %s", event.SubscriptionID)
	}
}

func batteryBody(event models.DeviceEvent) string {
	level, ok := event.DataValue("level")
	if !ok {
		return "🔋 Battery update"
	}
	body := fmt.Sprintf("🔋 Battery at %d%%", int(level*100))
	if state := event.Meta("state"); state != "" {
		body += fmt.Sprintf(" (%s)", state)
	}
	if lowPower, ok := event.DataValue("isLowPowerMode"); ok && lowPower == 1 {
		body += ", low power mode on"
	}
	return body
}

func geofenceBody(event models.DeviceEvent) string {
	zone := event.Meta("zoneName")
	if zone == "" {
		zone = "a zone"
	}
	if event.Meta("transition") == "exit" {
		return fmt.Sprintf("📍 Left %s", zone)
	}
	return fmt.Sprintf("📍 Arrived at %s", zone)
}

func healthBody(event models.DeviceEvent) string {
	var parts []string
	if steps, ok := event.DataValue("stepsToday"); ok {
		parts = append(parts, fmt.Sprintf("%.0f steps", steps))
	}
	if sleep, ok := event.DataValue("sleepDurationSeconds"); ok {
		parts = append(parts, fmt.Sprintf("%.1fh sleep", sleep/3600))
	}
	if hr, ok := event.DataValue("restingHeartRate"); ok {
		parts = append(parts, fmt.Sprintf("resting HR %.0f", hr))
	}
	if len(parts) == 0 {
		return "🏃 Health update"
	}
	return "🏃 " + strings.Join(parts, ", ")
}

func contextSummary(deviceCtx models.DeviceContext) string {
	var parts []string
	if zone := deviceCtx.Activity.CurrentZone; zone != nil {
		parts = append(parts, "at "+*zone)
	}
	if battery := deviceCtx.Device.Battery; battery != nil {
		parts = append(parts, fmt.Sprintf("battery %d%%", int(battery.Level*100)))
	}
	if steps := deviceCtx.Device.Health.StepsToday; steps != nil {
		parts = append(parts, fmt.Sprintf("%.0f steps today", *steps))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Context: " + strings.Join(parts, ", ")
}

// ZoneDuration formats how long the device has been in the current zone.
// Shared by the context summary surfaces.
func ZoneDuration(deviceCtx models.DeviceContext, now time.Time) string {
	if deviceCtx.Activity.ZoneEnteredAt == nil {
		return ""
	}
	elapsed := now.Sub(time.Unix(int64(*deviceCtx.Activity.ZoneEnteredAt), 0))
	if elapsed < 0 {
		return ""
	}
	hours := int(elapsed.Hours())
	minutes := int(elapsed.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

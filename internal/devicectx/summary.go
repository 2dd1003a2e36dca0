package devicectx

import (
	"fmt"
	"strings"
	"time"

	"github.com/betterclaw/betterclaw/internal/models"
)

// Summarize renders the human-readable one-screen status used by the CLI
// summary command and the host's slash command.
func Summarize(ctx models.DeviceContext, now time.Time) string {
	var b strings.Builder

	if battery := ctx.Device.Battery; battery != nil {
		fmt.Fprintf(&b, "Battery: %d%%", int(battery.Level*100))
		if battery.State != "" {
			fmt.Fprintf(&b, " (%s)", battery.State)
		}
		if battery.IsLowPowerMode {
			b.WriteString(", low power mode")
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Battery: unknown\n")
	}

	if location := ctx.Device.Location; location != nil {
		if location.Label != "" {
			fmt.Fprintf(&b, "Location: %s\n", location.Label)
		} else {
			fmt.Fprintf(&b, "Location: %.4f, %.4f\n", location.Latitude, location.Longitude)
		}
	} else {
		b.WriteString("Location: unknown\n")
	}

	if zone := ctx.Activity.CurrentZone; zone != nil {
		fmt.Fprintf(&b, "Zone: %s", *zone)
		if ctx.Activity.ZoneEnteredAt != nil {
			elapsed := now.Sub(time.Unix(int64(*ctx.Activity.ZoneEnteredAt), 0))
			if elapsed > 0 {
				fmt.Fprintf(&b, " (for %s)", formatDuration(elapsed))
			}
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Zone: none\n")
	}

	if steps := ctx.Device.Health.StepsToday; steps != nil {
		fmt.Fprintf(&b, "Steps today: %.0f\n", *steps)
	}

	fmt.Fprintf(&b, "Events today: %d, pushes: %d\n", ctx.Meta.EventsToday, ctx.Meta.PushesToday)
	return b.String()
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

package proactive

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/betterclaw/betterclaw/internal/models"
)

// fallbackDrainPerHour is used until the pattern engine learns a real
// drain rate.
const fallbackDrainPerHour = 0.04

type trigger struct {
	id              string
	cooldownSeconds float64
	evaluate        func(ctx models.DeviceContext, patterns models.Patterns, localNow time.Time) *models.Insight
}

// triggerTable is evaluated in declared order on every scan.
var triggerTable = []trigger{
	{"low-battery-away", 4 * 3600, evalLowBatteryAway},
	{"unusual-inactivity", 6 * 3600, evalUnusualInactivity},
	{"sleep-deficit", 24 * 3600, evalSleepDeficit},
	{"routine-deviation", 4 * 3600, evalRoutineDeviation},
	{"health-weekly-digest", 7 * 24 * 3600, evalWeeklyDigest},
}

func evalLowBatteryAway(ctx models.DeviceContext, patterns models.Patterns, _ time.Time) *models.Insight {
	battery := ctx.Device.Battery
	if battery == nil || battery.Level >= 0.3 {
		return nil
	}
	if zone := ctx.Activity.CurrentZone; zone != nil && *zone == "Home" {
		return nil
	}

	drain := fallbackDrainPerHour
	if patterns.BatteryPatterns.AvgDrainPerHour != nil && *patterns.BatteryPatterns.AvgDrainPerHour > 0 {
		drain = *patterns.BatteryPatterns.AvgDrainPerHour
	}
	hoursRemaining := int(math.Round(battery.Level / drain))

	priority := "normal"
	if battery.Level < 0.15 {
		priority = "high"
	}

	return &models.Insight{
		ID: "low-battery-away",
		Message: fmt.Sprintf("🪫 Battery at %d%% while away from home, roughly %dh remaining.",
			int(battery.Level*100), hoursRemaining),
		Priority: priority,
	}
}

func evalUnusualInactivity(ctx models.DeviceContext, patterns models.Patterns, localNow time.Time) *models.Insight {
	hour := localNow.Hour()
	if hour < 12 {
		return nil
	}
	steps := ctx.Device.Health.StepsToday
	avg := patterns.HealthTrends.StepsAvg7d
	if steps == nil || avg == nil {
		return nil
	}

	expectedByNow := *avg * float64(hour) / 24
	if *steps >= 0.5*expectedByNow {
		return nil
	}

	return &models.Insight{
		ID: "unusual-inactivity",
		Message: fmt.Sprintf("🚶 Only %.0f steps so far today; usually around %.0f by this hour.",
			*steps, expectedByNow),
		Priority: "normal",
	}
}

func evalSleepDeficit(ctx models.DeviceContext, patterns models.Patterns, localNow time.Time) *models.Insight {
	hour := localNow.Hour()
	if hour < 7 || hour > 10 {
		return nil
	}
	sleep := ctx.Device.Health.SleepDurationSeconds
	avg := patterns.HealthTrends.SleepAvg7d
	if sleep == nil || avg == nil {
		return nil
	}

	deficit := *avg - *sleep
	if deficit < 3600 {
		return nil
	}

	return &models.Insight{
		ID: "sleep-deficit",
		Message: fmt.Sprintf("😴 Slept %.1fh last night, %.1fh under the weekly average.",
			*sleep/3600, deficit/3600),
		Priority: "normal",
	}
}

func evalRoutineDeviation(ctx models.DeviceContext, patterns models.Patterns, localNow time.Time) *models.Insight {
	day := localNow.Weekday()
	if day < time.Monday || day > time.Friday {
		return nil
	}
	zone := ctx.Activity.CurrentZone
	if zone == nil {
		return nil
	}

	fracHour := float64(localNow.Hour()) + float64(localNow.Minute())/60
	for _, routine := range patterns.LocationRoutines.Weekday {
		if routine.TypicalLeave == nil || routine.Zone != *zone {
			continue
		}
		leave, ok := parseClock(*routine.TypicalLeave)
		if !ok {
			continue
		}
		if fracHour > leave+1.5 {
			return &models.Insight{
				ID: "routine-deviation",
				Message: fmt.Sprintf("🕐 Still at %s, usually gone by %s.",
					routine.Zone, *routine.TypicalLeave),
				Priority: "normal",
			}
		}
	}
	return nil
}

func evalWeeklyDigest(_ models.DeviceContext, patterns models.Patterns, localNow time.Time) *models.Insight {
	if localNow.Weekday() != time.Sunday {
		return nil
	}
	hour := localNow.Hour()
	if hour < 9 || hour > 11 {
		return nil
	}

	trends := patterns.HealthTrends
	stats := patterns.EventStats

	var lines []string
	if trends.StepsAvg7d != nil {
		lines = append(lines, fmt.Sprintf("steps %.0f/day (%s)", *trends.StepsAvg7d, trends.StepsTrend))
	}
	if trends.SleepAvg7d != nil {
		lines = append(lines, fmt.Sprintf("sleep %.1fh (%s)", *trends.SleepAvg7d/3600, trends.SleepTrend))
	}
	if trends.RestingHRAvg7d != nil {
		lines = append(lines, fmt.Sprintf("resting HR %.0f (%s)", *trends.RestingHRAvg7d, trends.RestingHRTrend))
	}
	if len(lines) == 0 {
		return nil
	}
	lines = append(lines, fmt.Sprintf("%.1f events/day, %.0f%% dropped",
		stats.EventsPerDay, stats.DropRate*100))

	return &models.Insight{
		ID:       "health-weekly-digest",
		Message:  "📊 Weekly digest: " + strings.Join(lines, "; ") + ".",
		Priority: "normal",
	}
}

// parseClock parses "HH:MM" into a fractional hour.
func parseClock(clock string) (float64, bool) {
	var h, m int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return float64(h) + float64(m)/60, true
}

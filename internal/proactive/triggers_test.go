package proactive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betterclaw/betterclaw/internal/models"
)

func contextWithBattery(level float64, zone string) models.DeviceContext {
	ctx := models.DeviceContext{}
	ctx.Device.Battery = &models.BatteryState{Level: level}
	if zone != "" {
		ctx.Activity.CurrentZone = models.StringPtr(zone)
	}
	return ctx
}

func TestEvalLowBatteryAway(t *testing.T) {
	noon := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, evalLowBatteryAway(models.DeviceContext{}, models.Patterns{}, noon), "no battery data")
	assert.Nil(t, evalLowBatteryAway(contextWithBattery(0.5, "Work"), models.Patterns{}, noon), "battery fine")
	assert.Nil(t, evalLowBatteryAway(contextWithBattery(0.2, "Home"), models.Patterns{}, noon), "home is safe")

	insight := evalLowBatteryAway(contextWithBattery(0.2, "Work"), models.Patterns{}, noon)
	require.NotNil(t, insight)
	assert.Equal(t, "normal", insight.Priority)
	assert.Contains(t, insight.Message, "Battery at 20%")
	assert.Contains(t, insight.Message, "5h remaining", "fallback drain estimate")

	// Below 15% the priority escalates. Unknown zone also counts as away.
	insight = evalLowBatteryAway(contextWithBattery(0.1, ""), models.Patterns{}, noon)
	require.NotNil(t, insight)
	assert.Equal(t, "high", insight.Priority)

	// A learned drain rate replaces the fallback.
	patterns := models.Patterns{}
	patterns.BatteryPatterns.AvgDrainPerHour = models.Float64Ptr(0.1)
	insight = evalLowBatteryAway(contextWithBattery(0.2, "Work"), patterns, noon)
	require.NotNil(t, insight)
	assert.Contains(t, insight.Message, "2h remaining")
}

func TestEvalUnusualInactivity(t *testing.T) {
	patterns := models.Patterns{}
	patterns.HealthTrends.StepsAvg7d = models.Float64Ptr(12000)

	ctx := models.DeviceContext{}
	ctx.Device.Health.StepsToday = models.Float64Ptr(3000)

	afternoon := time.Date(2026, 3, 11, 16, 0, 0, 0, time.UTC)
	// Expected by 16:00 is 8000; 3000 is under half of that.
	insight := evalUnusualInactivity(ctx, patterns, afternoon)
	require.NotNil(t, insight)
	assert.Contains(t, insight.Message, "3000 steps")

	morning := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	assert.Nil(t, evalUnusualInactivity(ctx, patterns, morning), "too early to judge")

	ctx.Device.Health.StepsToday = models.Float64Ptr(5000)
	assert.Nil(t, evalUnusualInactivity(ctx, patterns, afternoon), "above the inactivity threshold")

	assert.Nil(t, evalUnusualInactivity(models.DeviceContext{}, patterns, afternoon), "no step data")
	ctx.Device.Health.StepsToday = models.Float64Ptr(3000)
	assert.Nil(t, evalUnusualInactivity(ctx, models.Patterns{}, afternoon), "no baseline")
}

func TestEvalSleepDeficit(t *testing.T) {
	patterns := models.Patterns{}
	patterns.HealthTrends.SleepAvg7d = models.Float64Ptr(25200) // 7h

	ctx := models.DeviceContext{}
	ctx.Device.Health.SleepDurationSeconds = models.Float64Ptr(18000) // 5h

	eight := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)
	insight := evalSleepDeficit(ctx, patterns, eight)
	require.NotNil(t, insight)
	assert.Contains(t, insight.Message, "Slept 5.0h")
	assert.Contains(t, insight.Message, "2.0h under")

	noon := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	assert.Nil(t, evalSleepDeficit(ctx, patterns, noon), "outside morning window")

	ctx.Device.Health.SleepDurationSeconds = models.Float64Ptr(24000) // 40min short
	assert.Nil(t, evalSleepDeficit(ctx, patterns, eight), "deficit under an hour")
}

func TestEvalRoutineDeviation(t *testing.T) {
	patterns := models.Patterns{}
	patterns.LocationRoutines.Weekday = []models.ZoneRoutine{
		{Zone: "Home", TypicalLeave: models.StringPtr("08:30")},
	}

	ctx := models.DeviceContext{}
	ctx.Activity.CurrentZone = models.StringPtr("Home")

	monday11 := time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC)
	insight := evalRoutineDeviation(ctx, patterns, monday11)
	require.NotNil(t, insight)
	assert.Contains(t, insight.Message, "Still at Home")
	assert.Contains(t, insight.Message, "08:30")

	monday930 := time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC)
	assert.Nil(t, evalRoutineDeviation(ctx, patterns, monday930), "within the grace window")

	saturday11 := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	assert.Nil(t, evalRoutineDeviation(ctx, patterns, saturday11), "weekends have no commute routine")

	assert.Nil(t, evalRoutineDeviation(models.DeviceContext{}, patterns, monday11), "not in any zone")
}

func TestEvalWeeklyDigest(t *testing.T) {
	patterns := models.Patterns{}
	patterns.HealthTrends.StepsAvg7d = models.Float64Ptr(9500)
	patterns.HealthTrends.StepsTrend = models.TrendImproving
	patterns.HealthTrends.SleepAvg7d = models.Float64Ptr(25200)
	patterns.HealthTrends.SleepTrend = models.TrendStable
	patterns.EventStats.EventsPerDay = 4.2
	patterns.EventStats.DropRate = 0.25

	sunday10 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	insight := evalWeeklyDigest(models.DeviceContext{}, patterns, sunday10)
	require.NotNil(t, insight)
	assert.Contains(t, insight.Message, "Weekly digest")
	assert.Contains(t, insight.Message, "steps 9500/day (improving)")
	assert.Contains(t, insight.Message, "sleep 7.0h (stable)")
	assert.Contains(t, insight.Message, "4.2 events/day, 25% dropped")

	monday10 := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	assert.Nil(t, evalWeeklyDigest(models.DeviceContext{}, patterns, monday10), "digest only on Sunday")

	sunday14 := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	assert.Nil(t, evalWeeklyDigest(models.DeviceContext{}, patterns, sunday14), "outside the morning window")

	assert.Nil(t, evalWeeklyDigest(models.DeviceContext{}, models.Patterns{}, sunday10), "nothing to report")
}

func TestParseClock(t *testing.T) {
	v, ok := parseClock("08:30")
	assert.True(t, ok)
	assert.Equal(t, 8.5, v)

	v, ok = parseClock("23:59")
	assert.True(t, ok)
	assert.InDelta(t, 23.9833, v, 0.001)

	_, ok = parseClock("25:00")
	assert.False(t, ok)
	_, ok = parseClock("nonsense")
	assert.False(t, ok)
}

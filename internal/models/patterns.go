package models

// Trend labels over the ratio of a recent average to a baseline average.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
	TrendAbsent    = "absent"
)

// ZoneRoutine describes the typical arrive/leave times for one geofence
// zone, formatted as "HH:MM" local time.
type ZoneRoutine struct {
	Zone          string  `json:"zone"`
	TypicalArrive *string `json:"typicalArrive,omitempty"`
	TypicalLeave  *string `json:"typicalLeave,omitempty"`
}

// LocationRoutines partitions zone routines by weekday and weekend.
type LocationRoutines struct {
	Weekday []ZoneRoutine `json:"weekday,omitempty"`
	Weekend []ZoneRoutine `json:"weekend,omitempty"`
}

// HealthTrends holds 7-day and 30-day averages with qualitative labels.
type HealthTrends struct {
	StepsAvg7d      *float64 `json:"stepsAvg7d,omitempty"`
	StepsAvg30d     *float64 `json:"stepsAvg30d,omitempty"`
	StepsTrend      string   `json:"stepsTrend"`
	SleepAvg7d      *float64 `json:"sleepAvg7d,omitempty"`
	SleepAvg30d     *float64 `json:"sleepAvg30d,omitempty"`
	SleepTrend      string   `json:"sleepTrend"`
	RestingHRAvg7d  *float64 `json:"restingHrAvg7d,omitempty"`
	RestingHRAvg30d *float64 `json:"restingHrAvg30d,omitempty"`
	RestingHRTrend  string   `json:"restingHrTrend"`
}

// BatteryPatterns holds derived battery behavior. AvgDrainPerHour and
// TypicalChargeTime stay absent until a drain model lands; consumers fall
// back to a constant estimate.
type BatteryPatterns struct {
	AvgDrainPerHour     *float64 `json:"avgDrainPerHour,omitempty"`
	TypicalChargeTime   *string  `json:"typicalChargeTime,omitempty"`
	LowBatteryFrequency *float64 `json:"lowBatteryFrequency,omitempty"` // events/day
}

// EventStats summarizes the trailing 7 days of the event log.
type EventStats struct {
	EventsPerDay float64  `json:"eventsPerDay"`
	PushesPerDay float64  `json:"pushesPerDay"`
	DropRate     float64  `json:"dropRate"` // 0..1
	TopSources   []string `json:"topSources,omitempty"`
}

// Patterns is the output of the pattern engine, persisted separately from
// the live context. TriggerCooldowns is the only field mutated outside the
// engine; the proactive scanner read-modify-writes it under the patterns
// document lock.
type Patterns struct {
	LocationRoutines LocationRoutines   `json:"locationRoutines"`
	HealthTrends     HealthTrends       `json:"healthTrends"`
	BatteryPatterns  BatteryPatterns    `json:"batteryPatterns"`
	EventStats       EventStats         `json:"eventStats"`
	TriggerCooldowns map[string]float64 `json:"triggerCooldowns,omitempty"`
	ComputedAt       float64            `json:"computedAt"`
}

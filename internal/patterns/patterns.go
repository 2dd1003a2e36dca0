// Package patterns runs the periodic analytical pass over the event log,
// deriving location routines, health trends, battery behavior, and event
// statistics.
package patterns

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/rs/zerolog/log"

	"github.com/betterclaw/betterclaw/internal/devicectx"
	"github.com/betterclaw/betterclaw/internal/eventlog"
	"github.com/betterclaw/betterclaw/internal/models"
)

const computeInterval = 6 * time.Hour

// Engine computes the patterns document on a schedule.
type Engine struct {
	journal    *eventlog.Log
	store      *devicectx.Store
	windowDays int
	loc        *time.Location
	nowFn      func() time.Time
}

// NewEngine creates the pattern engine. windowDays bounds how far back the
// event log is read.
func NewEngine(journal *eventlog.Log, store *devicectx.Store, windowDays int) *Engine {
	return &Engine{
		journal:    journal,
		store:      store,
		windowDays: windowDays,
		loc:        time.Local,
		nowFn:      time.Now,
	}
}

// SetLocation overrides the location used for routine bucketing.
func (e *Engine) SetLocation(loc *time.Location) {
	if loc != nil {
		e.loc = loc
	}
}

// Start runs an immediate compute and then one every six hours until ctx
// is done.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		if err := e.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Pattern compute failed")
		}

		ticker := time.NewTicker(computeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.RunOnce(ctx); err != nil {
					log.Error().Err(err).Msg("Pattern compute failed")
				}
			}
		}
	}()
}

// RunOnce reads the window, computes the document, persists it preserving
// trigger cooldowns, and rotates the journal.
func (e *Engine) RunOnce(ctx context.Context) error {
	_ = ctx
	now := e.nowFn()
	since := float64(now.Unix()) - float64(e.windowDays)*86400

	entries, err := e.journal.ReadSince(since)
	if err != nil {
		return fmt.Errorf("read event log: %w", err)
	}
	prior, err := e.store.ReadPatterns()
	if err != nil {
		return fmt.Errorf("read prior patterns: %w", err)
	}

	computed := e.Compute(entries, prior, float64(now.Unix()))
	if err := e.store.WritePatterns(computed); err != nil {
		return fmt.Errorf("write patterns: %w", err)
	}

	dropped, err := e.journal.Rotate()
	if err != nil {
		log.Warn().Err(err).Msg("Event log rotation failed")
	} else if dropped > 0 {
		log.Info().Int("dropped", dropped).Msg("Rotated event log")
	}

	log.Info().Int("entries", len(entries)).Msg("Pattern compute complete")
	return nil
}

// Compute derives a Patterns document from log entries. TriggerCooldowns
// carries over from the prior document untouched.
func (e *Engine) Compute(entries []models.EventLogEntry, prior models.Patterns, nowEpoch float64) models.Patterns {
	patterns := models.Patterns{
		LocationRoutines: e.computeRoutines(entries),
		HealthTrends:     computeHealthTrends(entries, nowEpoch),
		BatteryPatterns:  computeBatteryPatterns(entries),
		EventStats:       computeEventStats(entries, nowEpoch),
		TriggerCooldowns: prior.TriggerCooldowns,
		ComputedAt:       nowEpoch,
	}
	return patterns
}

// computeRoutines partitions geofence events into weekday/weekend buckets
// and reports the median arrive/leave fractional hour per zone as "HH:MM".
func (e *Engine) computeRoutines(entries []models.EventLogEntry) models.LocationRoutines {
	type zoneTimes struct {
		enters []float64
		exits  []float64
	}
	weekday := make(map[string]*zoneTimes)
	weekend := make(map[string]*zoneTimes)

	for _, entry := range entries {
		if entry.Event.Source != "geofence.triggered" {
			continue
		}
		zone := entry.Event.Meta("zoneName")
		if zone == "" {
			zone = "Unknown"
		}

		t := time.Unix(int64(entry.Event.FiredAt), 0).In(e.loc)
		bucket := weekday
		if t.Weekday() == time.Sunday || t.Weekday() == time.Saturday {
			bucket = weekend
		}
		times := bucket[zone]
		if times == nil {
			times = &zoneTimes{}
			bucket[zone] = times
		}

		fracHour := float64(t.Hour()) + float64(t.Minute())/60
		if entry.Event.Meta("transition") == "exit" {
			times.exits = append(times.exits, fracHour)
		} else {
			times.enters = append(times.enters, fracHour)
		}
	}

	build := func(bucket map[string]*zoneTimes) []models.ZoneRoutine {
		zones := make([]string, 0, len(bucket))
		for zone := range bucket {
			zones = append(zones, zone)
		}
		sort.Strings(zones)

		routines := make([]models.ZoneRoutine, 0, len(zones))
		for _, zone := range zones {
			times := bucket[zone]
			routine := models.ZoneRoutine{Zone: zone}
			if arrive, ok := median(times.enters); ok {
				routine.TypicalArrive = models.StringPtr(formatClock(arrive))
			}
			if leave, ok := median(times.exits); ok {
				routine.TypicalLeave = models.StringPtr(formatClock(leave))
			}
			routines = append(routines, routine)
		}
		return routines
	}

	return models.LocationRoutines{
		Weekday: build(weekday),
		Weekend: build(weekend),
	}
}

func computeHealthTrends(entries []models.EventLogEntry, nowEpoch float64) models.HealthTrends {
	weekCutoff := nowEpoch - 7*86400

	var recent, baseline []models.EventLogEntry
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Event.Source, "health") {
			continue
		}
		baseline = append(baseline, entry)
		if entry.Timestamp >= weekCutoff {
			recent = append(recent, entry)
		}
	}

	trends := models.HealthTrends{
		StepsTrend:     models.TrendAbsent,
		SleepTrend:     models.TrendAbsent,
		RestingHRTrend: models.TrendAbsent,
	}

	trends.StepsAvg7d = averageMetric(recent, "stepsToday")
	trends.StepsAvg30d = averageMetric(baseline, "stepsToday")
	trends.StepsTrend = trendLabel(trends.StepsAvg7d, trends.StepsAvg30d, false)

	trends.SleepAvg7d = averageMetric(recent, "sleepDurationSeconds")
	trends.SleepAvg30d = averageMetric(baseline, "sleepDurationSeconds")
	trends.SleepTrend = trendLabel(trends.SleepAvg7d, trends.SleepAvg30d, false)

	trends.RestingHRAvg7d = averageMetric(recent, "restingHeartRate")
	trends.RestingHRAvg30d = averageMetric(baseline, "restingHeartRate")
	trends.RestingHRTrend = trendLabel(trends.RestingHRAvg7d, trends.RestingHRAvg30d, true)

	return trends
}

// trendLabel classifies recent/baseline. For most metrics more is better;
// invert flips the labels for metrics where less is better (resting HR).
func trendLabel(recent, baseline *float64, invert bool) string {
	if recent == nil || baseline == nil || *baseline == 0 {
		return models.TrendAbsent
	}
	ratio := *recent / *baseline
	switch {
	case ratio > 1.1:
		if invert {
			return models.TrendDeclining
		}
		return models.TrendImproving
	case ratio < 0.9:
		if invert {
			return models.TrendImproving
		}
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

func computeBatteryPatterns(entries []models.EventLogEntry) models.BatteryPatterns {
	// AvgDrainPerHour and TypicalChargeTime stay absent; the low-battery
	// trigger falls back to a constant drain estimate.
	patterns := models.BatteryPatterns{}
	if len(entries) == 0 {
		return patterns
	}

	lowCount := 0
	for _, entry := range entries {
		if wildcard.Match("*battery-low", entry.Event.SubscriptionID) {
			lowCount++
		}
	}

	daySpan := (entries[len(entries)-1].Timestamp - entries[0].Timestamp) / 86400
	if daySpan < 1 {
		daySpan = 1
	}
	patterns.LowBatteryFrequency = models.Float64Ptr(float64(lowCount) / daySpan)
	return patterns
}

func computeEventStats(entries []models.EventLogEntry, nowEpoch float64) models.EventStats {
	weekCutoff := nowEpoch - 7*86400

	var total, pushes, drops int
	sourceCounts := make(map[string]int)
	for _, entry := range entries {
		if entry.Timestamp < weekCutoff {
			continue
		}
		total++
		switch entry.Decision {
		case models.ActionPush:
			pushes++
		case models.ActionDrop:
			drops++
		}
		sourceCounts[entry.Event.Source]++
	}

	stats := models.EventStats{
		EventsPerDay: float64(total) / 7,
		PushesPerDay: float64(pushes) / 7,
	}
	if total > 0 {
		stats.DropRate = float64(drops) / float64(total)
	}

	type sourceCount struct {
		source string
		count  int
	}
	counts := make([]sourceCount, 0, len(sourceCounts))
	for source, count := range sourceCounts {
		counts = append(counts, sourceCount{source, count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].source < counts[j].source
	})
	for i, sc := range counts {
		if i == 5 {
			break
		}
		stats.TopSources = append(stats.TopSources, sc.source)
	}
	return stats
}

func averageMetric(entries []models.EventLogEntry, key string) *float64 {
	var sum float64
	var count int
	for _, entry := range entries {
		if v, ok := entry.Event.DataValue(key); ok {
			sum += v
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return models.Float64Ptr(sum / float64(count))
}

// median returns the middle value of a fractional-hour list.
func median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// formatClock renders a fractional hour as "HH:MM".
func formatClock(fracHour float64) string {
	totalMinutes := int(math.Round(fracHour * 60))
	if totalMinutes >= 24*60 {
		totalMinutes = 24*60 - 1
	}
	return fmt.Sprintf("%02d:%02d", totalMinutes/60, totalMinutes%60)
}

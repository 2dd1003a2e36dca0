// Package devicectx owns the rolling device context snapshot and its
// durable persistence, plus the sibling patterns document.
package devicectx

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/betterclaw/betterclaw/internal/models"
)

const (
	contextFileName  = "context.json"
	patternsFileName = "patterns.json"
)

var nowFn = time.Now

// Store holds the DeviceContext in memory backed by context.json, and
// mediates access to patterns.json. The context is mutated only from the
// pipeline lane; Get hands out deep copies.
type Store struct {
	mu  sync.RWMutex
	ctx models.DeviceContext

	// patternsMu serializes every read-modify-write of patterns.json,
	// shared between the pattern engine and the proactive scanner.
	patternsMu sync.Mutex

	dir string
}

// NewStore creates a store rooted at dir. Call Load before first use.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads context.json. A missing or corrupt file initializes the empty
// context; Load never fails.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, contextFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", path).Msg("Failed to read context file, starting empty")
		}
		s.ctx = models.DeviceContext{}
		return
	}

	var ctx models.DeviceContext
	if err := json.Unmarshal(data, &ctx); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Failed to parse context file, starting empty")
		s.ctx = models.DeviceContext{}
		return
	}
	s.ctx = ctx
}

// Get returns a deep copy of the current snapshot.
func (s *Store) Get() models.DeviceContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx.Clone()
}

// UpdateFromEvent applies one event to the context: day rollover, counters,
// then a per-source merge.
func (s *Store) UpdateFromEvent(event models.DeviceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Counters reset on UTC day boundaries.
	if s.ctx.Meta.LastEventAt > 0 && utcDay(event.FiredAt) != utcDay(s.ctx.Meta.LastEventAt) {
		s.ctx.Meta.EventsToday = 0
		s.ctx.Meta.PushesToday = 0
	}
	s.ctx.Meta.LastEventAt = event.FiredAt
	s.ctx.Meta.EventsToday++

	switch {
	case event.Source == "device.battery":
		s.mergeBattery(event)
	case event.Source == "geofence.triggered":
		s.applyGeofence(event)
	case strings.HasPrefix(event.Source, "health"):
		s.mergeHealth(event)
	}
}

// RecordPush bumps the push counters after a successful forward decision.
func (s *Store) RecordPush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx.Meta.LastAgentPushAt = float64(nowFn().Unix())
	s.ctx.Meta.PushesToday++
}

// Save writes the pretty-printed snapshot plus trailing newline.
func (s *Store) Save() error {
	s.mu.RLock()
	ctx := s.ctx.Clone()
	s.mu.RUnlock()

	return writeJSONFile(filepath.Join(s.dir, contextFileName), ctx)
}

// ReadPatterns loads patterns.json. A missing or corrupt file yields the
// zero Patterns without error.
func (s *Store) ReadPatterns() (models.Patterns, error) {
	s.patternsMu.Lock()
	defer s.patternsMu.Unlock()
	return s.readPatternsLocked()
}

// WritePatterns persists the patterns document.
func (s *Store) WritePatterns(patterns models.Patterns) error {
	s.patternsMu.Lock()
	defer s.patternsMu.Unlock()
	return writeJSONFile(filepath.Join(s.dir, patternsFileName), patterns)
}

// RecordTriggerCooldown sets one trigger's last-fired time with a
// read-modify-write under the patterns document lock.
func (s *Store) RecordTriggerCooldown(triggerID string, firedAt float64) error {
	s.patternsMu.Lock()
	defer s.patternsMu.Unlock()

	patterns, err := s.readPatternsLocked()
	if err != nil {
		return err
	}
	if patterns.TriggerCooldowns == nil {
		patterns.TriggerCooldowns = make(map[string]float64)
	}
	patterns.TriggerCooldowns[triggerID] = firedAt
	return writeJSONFile(filepath.Join(s.dir, patternsFileName), patterns)
}

func (s *Store) readPatternsLocked() (models.Patterns, error) {
	path := filepath.Join(s.dir, patternsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Patterns{}, nil
		}
		return models.Patterns{}, fmt.Errorf("read patterns file %s: %w", path, err)
	}
	var patterns models.Patterns
	if err := json.Unmarshal(data, &patterns); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Failed to parse patterns file, starting empty")
		return models.Patterns{}, nil
	}
	return patterns, nil
}

func (s *Store) mergeBattery(event models.DeviceEvent) {
	battery := s.ctx.Device.Battery
	if battery == nil {
		battery = &models.BatteryState{}
	}
	if level, ok := event.DataValue("level"); ok {
		battery.Level = level
	}
	if state := event.Meta("state"); state != "" {
		battery.State = state
	}
	if lowPower, ok := event.DataValue("isLowPowerMode"); ok {
		battery.IsLowPowerMode = lowPower == 1
	}
	battery.UpdatedAt = event.FiredAt
	s.ctx.Device.Battery = battery
}

func (s *Store) applyGeofence(event models.DeviceEvent) {
	zone := event.Meta("zoneName")
	transition := event.Meta("transition")

	var from *string
	if s.ctx.Activity.CurrentZone != nil {
		prior := *s.ctx.Activity.CurrentZone
		from = &prior
	}

	switch transition {
	case "exit":
		s.ctx.Activity.LastTransition = &models.ZoneTransition{
			From: from,
			At:   event.FiredAt,
		}
		if s.ctx.Activity.LastTransition.From == nil && zone != "" {
			s.ctx.Activity.LastTransition.From = &zone
		}
		s.ctx.Activity.CurrentZone = nil
		s.ctx.Activity.ZoneEnteredAt = nil
		s.ctx.Activity.IsStationary = false
		s.ctx.Activity.StationarySince = nil
	default: // "enter" and unlabeled transitions both count as arrival
		s.ctx.Activity.LastTransition = &models.ZoneTransition{
			From: from,
			To:   &zone,
			At:   event.FiredAt,
		}
		s.ctx.Activity.CurrentZone = &zone
		s.ctx.Activity.ZoneEnteredAt = models.Float64Ptr(event.FiredAt)
		s.ctx.Activity.IsStationary = true
		s.ctx.Activity.StationarySince = models.Float64Ptr(event.FiredAt)
	}

	s.refreshLocation(event, zone, transition)
}

func (s *Store) refreshLocation(event models.DeviceEvent, zone, transition string) {
	location := s.ctx.Device.Location
	if location == nil {
		location = &models.LocationState{}
	}
	if lat, ok := event.DataValue("latitude"); ok {
		location.Latitude = lat
	}
	if lon, ok := event.DataValue("longitude"); ok {
		location.Longitude = lon
	}
	if accuracy, ok := event.DataValue("horizontalAccuracy"); ok {
		location.HorizontalAccuracy = accuracy
	}
	if transition != "exit" && zone != "" {
		location.Label = zone
	}
	location.UpdatedAt = event.FiredAt
	s.ctx.Device.Location = location
}

func (s *Store) mergeHealth(event models.DeviceEvent) {
	health := &s.ctx.Device.Health
	mergeMetric(&health.StepsToday, event, "stepsToday")
	mergeMetric(&health.DistanceMeters, event, "distanceMeters")
	mergeMetric(&health.HeartRateAvg, event, "heartRateAvg")
	mergeMetric(&health.RestingHeartRate, event, "restingHeartRate")
	mergeMetric(&health.HRV, event, "hrv")
	mergeMetric(&health.ActiveEnergyKcal, event, "activeEnergyKcal")
	mergeMetric(&health.SleepDurationSeconds, event, "sleepDurationSeconds")
	health.UpdatedAt = event.FiredAt
}

func mergeMetric(dst **float64, event models.DeviceEvent, key string) {
	if v, ok := event.DataValue(key); ok {
		*dst = &v
	}
}

func utcDay(epoch float64) int64 {
	return int64(math.Floor(epoch / 86400))
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

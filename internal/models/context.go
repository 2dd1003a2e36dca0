package models

// BatteryState is the last known battery snapshot.
type BatteryState struct {
	Level          float64 `json:"level"` // 0..1
	State          string  `json:"state,omitempty"`
	IsLowPowerMode bool    `json:"isLowPowerMode"`
	UpdatedAt      float64 `json:"updatedAt"`
}

// LocationState is the last known device location. Latitude and longitude
// never leave the process through the judgment layer; only Label does.
type LocationState struct {
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	HorizontalAccuracy float64 `json:"horizontalAccuracy"`
	Label              string  `json:"label,omitempty"`
	UpdatedAt          float64 `json:"updatedAt"`
}

// HealthState carries the most recent health metrics. Every metric is
// nullable; absent fields preserve prior values on merge.
type HealthState struct {
	StepsToday           *float64 `json:"stepsToday,omitempty"`
	DistanceMeters       *float64 `json:"distanceMeters,omitempty"`
	HeartRateAvg         *float64 `json:"heartRateAvg,omitempty"`
	RestingHeartRate     *float64 `json:"restingHeartRate,omitempty"`
	HRV                  *float64 `json:"hrv,omitempty"`
	ActiveEnergyKcal     *float64 `json:"activeEnergyKcal,omitempty"`
	SleepDurationSeconds *float64 `json:"sleepDurationSeconds,omitempty"`
	UpdatedAt            float64  `json:"updatedAt,omitempty"`
}

// ZoneTransition records the last geofence boundary crossing.
type ZoneTransition struct {
	From *string `json:"from,omitempty"`
	To   *string `json:"to,omitempty"`
	At   float64 `json:"at"`
}

// ActivityState tracks zone occupancy. CurrentZone is non-nil exactly when
// the last transition was an enter.
type ActivityState struct {
	CurrentZone     *string         `json:"currentZone,omitempty"`
	ZoneEnteredAt   *float64        `json:"zoneEnteredAt,omitempty"`
	LastTransition  *ZoneTransition `json:"lastTransition,omitempty"`
	IsStationary    bool            `json:"isStationary"`
	StationarySince *float64        `json:"stationarySince,omitempty"`
}

// MetaState holds the daily counters. EventsToday and PushesToday reset on
// UTC day rollover when the next event arrives.
type MetaState struct {
	LastEventAt     float64 `json:"lastEventAt"`
	EventsToday     int     `json:"eventsToday"`
	LastAgentPushAt float64 `json:"lastAgentPushAt"`
	PushesToday     int     `json:"pushesToday"`
}

// DeviceState groups the raw sensor snapshots.
type DeviceState struct {
	Battery  *BatteryState  `json:"battery,omitempty"`
	Location *LocationState `json:"location,omitempty"`
	Health   HealthState    `json:"health"`
}

// DeviceContext is the rolling snapshot of device state reconstructed from
// events. It is mutated only by the pipeline lane and read by everyone else
// through value copies.
type DeviceContext struct {
	Device   DeviceState   `json:"device"`
	Activity ActivityState `json:"activity"`
	Meta     MetaState     `json:"meta"`
}

// Clone returns a deep copy so the snapshot can be safely shared across
// goroutines.
func (c DeviceContext) Clone() DeviceContext {
	clone := c

	if c.Device.Battery != nil {
		b := *c.Device.Battery
		clone.Device.Battery = &b
	}
	if c.Device.Location != nil {
		l := *c.Device.Location
		clone.Device.Location = &l
	}
	clone.Device.Health = c.Device.Health.clone()

	if c.Activity.CurrentZone != nil {
		z := *c.Activity.CurrentZone
		clone.Activity.CurrentZone = &z
	}
	if c.Activity.ZoneEnteredAt != nil {
		at := *c.Activity.ZoneEnteredAt
		clone.Activity.ZoneEnteredAt = &at
	}
	if c.Activity.StationarySince != nil {
		at := *c.Activity.StationarySince
		clone.Activity.StationarySince = &at
	}
	if c.Activity.LastTransition != nil {
		t := *c.Activity.LastTransition
		if c.Activity.LastTransition.From != nil {
			from := *c.Activity.LastTransition.From
			t.From = &from
		}
		if c.Activity.LastTransition.To != nil {
			to := *c.Activity.LastTransition.To
			t.To = &to
		}
		clone.Activity.LastTransition = &t
	}

	return clone
}

func (h HealthState) clone() HealthState {
	clone := h
	clone.StepsToday = cloneFloat(h.StepsToday)
	clone.DistanceMeters = cloneFloat(h.DistanceMeters)
	clone.HeartRateAvg = cloneFloat(h.HeartRateAvg)
	clone.RestingHeartRate = cloneFloat(h.RestingHeartRate)
	clone.HRV = cloneFloat(h.HRV)
	clone.ActiveEnergyKcal = cloneFloat(h.ActiveEnergyKcal)
	clone.SleepDurationSeconds = cloneFloat(h.SleepDurationSeconds)
	return clone
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

// Float64Ptr is a convenience for building optional metric values.
func Float64Ptr(v float64) *float64 {
	return &v
}

// StringPtr is a convenience for building optional string values.
func StringPtr(v string) *string {
	return &v
}

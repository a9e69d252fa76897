package types

import (
	"strings"
	"time"
)

// WeatherSnapshot is a normalized point-in-time weather observation supplied
// by the provider adapters. Numeric fields are pointers: nil means the value
// was not reported ("unknown"). Evaluators must never coerce an unknown value
// into a number that could satisfy a threshold.
type WeatherSnapshot struct {
	AmbientTempC  *float64 `json:"ambient_temp_c,omitempty"`
	DewPointC     *float64 `json:"dew_point_c,omitempty"`
	PavementTempC *float64 `json:"pavement_temp_c,omitempty"`
	HumidityPct   *float64 `json:"humidity_pct,omitempty"`
	WindSpeedKmh  *float64 `json:"wind_speed_kmh,omitempty"`

	// Forecast probabilities for the next rain (2h) and snow (3h) windows.
	RainProbPct *float64 `json:"rain_prob_pct,omitempty"`
	SnowProbPct *float64 `json:"snow_prob_pct,omitempty"`

	// PavementTempSource names the sensor system the pavement temperature
	// came from (e.g. "marwis", "forecast"). Informational, echoed in the
	// outbound payload.
	PavementTempSource string `json:"pavement_temp_source,omitempty"`

	// ObservedAt is when the snapshot was produced by the adapter.
	ObservedAt time.Time `json:"observed_at,omitzero"`
}

// Float returns a pointer to v. Convenience for building snapshots.
func Float(v float64) *float64 { return &v }

// Surface condition channel values that count as a wet surface.
const (
	SurfaceWet  = "WET"
	SurfaceDamp = "DAMP"
)

// MarwisMeasurement is a single sensor channel reading from the MARWIS
// surface station.
type MarwisMeasurement struct {
	SensorChannelName string `json:"sensor_channel_name"`
	Value             string `json:"value"`
}

// MarwisReading is the latest measurement set received from the MARWIS
// surface station, or absent (nil) when the station has not reported.
type MarwisReading struct {
	StationID    string              `json:"station_id,omitempty"`
	Measurements []MarwisMeasurement `json:"measurements"`
	ReceivedAt   time.Time           `json:"received_at"`
}

// SurfaceCondition returns the upper-cased value of the surface condition
// channel, matched case-insensitively on a channel name containing
// "surface". Returns false when the reading is nil or carries no such
// channel.
func (r *MarwisReading) SurfaceCondition() (string, bool) {
	if r == nil {
		return "", false
	}
	for _, m := range r.Measurements {
		if strings.Contains(strings.ToLower(m.SensorChannelName), "surface") {
			return strings.ToUpper(strings.TrimSpace(m.Value)), true
		}
	}
	return "", false
}

// ReceivedWithin reports whether the reading holds measurements received no
// earlier than window before now. A nil or empty reading is never recent.
func (r *MarwisReading) ReceivedWithin(now time.Time, window time.Duration) bool {
	if r == nil || len(r.Measurements) == 0 {
		return false
	}
	return !r.ReceivedAt.Before(now.Add(-window))
}

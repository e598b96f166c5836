package weather

import (
	"fmt"
	"math"
)

// Query is a location request: either a free-text place name or a
// coordinate pair. A replayed recent search carries both — the coordinates
// it resolved to and the text the user originally typed.
type Query struct {
	Text      string
	Lat       float64
	Lon       float64
	HasCoords bool
}

// Validate enforces that a query names a location one way or the other.
func (q Query) Validate() error {
	if q.Text == "" && !q.HasCoords {
		return fmt.Errorf("query needs a place name or a coordinate pair")
	}
	return nil
}

// DisplayOptions affect both the upstream request and rendering.
// Units other than "metric" render imperial suffixes.
type DisplayOptions struct {
	Units string
	Lang  string
}

const (
	UnitsMetric   = "metric"
	UnitsImperial = "imperial"
)

// DefaultOptions mirrors the dashboard's UI defaults.
func DefaultOptions() DisplayOptions {
	return DisplayOptions{Units: UnitsMetric, Lang: "en"}
}

// Condition is a weather condition code/description/icon triple.
type Condition struct {
	Code        int    `json:"code"`
	Main        string `json:"main,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// Current holds current conditions for a resolved location.
type Current struct {
	Temp      float64   `json:"temp"`
	Humidity  int       `json:"humidity"`
	WindSpeed float64   `json:"wind_speed"`
	UVI       float64   `json:"uvi"`
	Condition Condition `json:"condition"`
	Sunrise   int64     `json:"sunrise"`
	Sunset    int64     `json:"sunset"`
}

// HourlyPoint is one hourly forecast point. Pop is the precipitation
// probability in the 0–1 range as delivered upstream.
type HourlyPoint struct {
	Dt   int64   `json:"dt"`
	Temp float64 `json:"temp"`
	Pop  float64 `json:"pop"`
}

// DailyPoint is one daily forecast point.
type DailyPoint struct {
	Dt        int64     `json:"dt"`
	TempMax   float64   `json:"temp_max"`
	TempMin   float64   `json:"temp_min"`
	Condition Condition `json:"condition"`
}

// AirPollution carries the primary air-quality index, ordinal 1–5.
type AirPollution struct {
	AQI int `json:"aqi"`
}

// Alert is one severe-weather alert, passed through in upstream order.
type Alert struct {
	Event       string `json:"event"`
	SenderName  string `json:"sender_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Payload is the full response for one resolved location. Renderers treat
// it as read-only.
type Payload struct {
	Location     string        `json:"location"`
	Lat          float64       `json:"lat"`
	Lon          float64       `json:"lon"`
	Timezone     int           `json:"timezone"` // UTC offset in seconds
	Units        string        `json:"units"`
	Current      *Current      `json:"current,omitempty"`
	Hourly       []HourlyPoint `json:"hourly,omitempty"`
	Daily        []DailyPoint  `json:"daily,omitempty"`
	AirPollution *AirPollution `json:"air_pollution,omitempty"`
	Alerts       []Alert       `json:"alerts,omitempty"`
}

// HasFiniteCoords reports whether the payload carries usable coordinates.
func (p *Payload) HasFiniteCoords() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0)
}

// FetchError is a failed weather fetch: a non-2xx upstream status or a
// network failure. Status is 0 when no HTTP response was received.
type FetchError struct {
	Status  int
	Message string
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("weather fetch failed (status %d): %s", e.Status, e.Message)
	}
	return "weather fetch failed: " + e.Message
}

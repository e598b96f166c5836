package dashboard

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/skycast-dev/skycast/internal/weather"
)

// View builders are pure functions from a fetched payload (plus wall-clock
// time) to the data the rendering adapters consume. A nil/empty view means
// the adapter clears that section; builders never fail.

const (
	hourlyWindow = 24
	dailyWindow  = 7
	mapZoom      = 9
)

// UVBand is the severity band for a UV index value.
type UVBand struct {
	Label     string `json:"label"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
}

// uvBand maps a UV index to its fixed severity band. Text flips to black
// only in the moderate band, where the yellow background needs contrast.
func uvBand(uvi float64) UVBand {
	switch {
	case uvi >= 11:
		return UVBand{Label: "extreme", Color: "#a855f7", TextColor: "#fff"}
	case uvi >= 8:
		return UVBand{Label: "very high", Color: "#ef4444", TextColor: "#fff"}
	case uvi >= 6:
		return UVBand{Label: "high", Color: "#f97316", TextColor: "#fff"}
	case uvi >= 3:
		return UVBand{Label: "moderate", Color: "#facc15", TextColor: "#000"}
	default:
		return UVBand{Label: "low", Color: "#10b981", TextColor: "#fff"}
	}
}

// CurrentView is the current-conditions card.
type CurrentView struct {
	Location    string  `json:"location"`
	Temperature int     `json:"temperature"`
	TempUnit    string  `json:"temp_unit"`
	WindUnit    string  `json:"wind_unit"`
	Description string  `json:"description,omitempty"`
	Icon        string  `json:"icon,omitempty"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	UVIndex     float64 `json:"uv_index"`
	UV          UVBand  `json:"uv"`
	Night       bool    `json:"night"`
	LocalTime   string  `json:"local_time"`
	LocalDate   string  `json:"local_date"`
	Sunrise     string  `json:"sunrise,omitempty"`
	Sunset      string  `json:"sunset,omitempty"`
}

// BuildCurrent renders the current-conditions card. Night means the
// current UTC instant is before sunrise or at/after sunset; when either
// bound is absent or zero the card defaults to day. The local clock is
// derived by adding the payload's UTC offset to now and formatting the
// result as UTC, so no timezone database lookup happens.
func BuildCurrent(p *weather.Payload, now time.Time) *CurrentView {
	if p == nil || p.Current == nil {
		return nil
	}
	cur := p.Current

	tempUnit, windUnit := "°F", "mph"
	if p.Units == weather.UnitsMetric {
		tempUnit, windUnit = "°C", "m/s"
	}

	night := false
	if cur.Sunrise > 0 && cur.Sunset > 0 {
		utc := now.Unix()
		night = utc < cur.Sunrise || utc >= cur.Sunset
	}

	local := time.Unix(now.Unix()+int64(p.Timezone), 0).UTC()

	return &CurrentView{
		Location:    p.Location,
		Temperature: int(math.Round(cur.Temp)),
		TempUnit:    tempUnit,
		WindUnit:    windUnit,
		Description: cur.Condition.Description,
		Icon:        cur.Condition.Icon,
		Humidity:    cur.Humidity,
		WindSpeed:   cur.WindSpeed,
		UVIndex:     cur.UVI,
		UV:          uvBand(cur.UVI),
		Night:       night,
		LocalTime:   local.Format("3:04 PM"),
		LocalDate:   local.Format("Mon, Jan 2"),
		Sunrise:     formatClock(cur.Sunrise, p.Timezone),
		Sunset:      formatClock(cur.Sunset, p.Timezone),
	}
}

// formatClock renders an epoch as a clock reading in the payload's local
// offset. Zero means the upstream omitted the bound.
func formatClock(epoch int64, offset int) string {
	if epoch == 0 {
		return ""
	}
	return time.Unix(epoch+int64(offset), 0).UTC().Format("3:04 PM")
}

// HourlyView feeds the hourly chart: a temperature line series and a
// precipitation-probability bar series on a 0–100 secondary axis. ChartID
// is fresh on every build; the adapter must destroy any chart instance
// with a different ID before creating this one.
type HourlyView struct {
	ChartID       string    `json:"chart_id"`
	Labels        []string  `json:"labels"`
	Temps         []float64 `json:"temps"`
	Precip        []int     `json:"precip"`
	PrecipAxisMin int       `json:"precip_axis_min"`
	PrecipAxisMax int       `json:"precip_axis_max"`
}

var chartSeq atomic.Uint64

// BuildHourly takes the first 24 hourly points in payload order.
func BuildHourly(p *weather.Payload) *HourlyView {
	if p == nil || len(p.Hourly) == 0 {
		return nil
	}

	points := p.Hourly
	if len(points) > hourlyWindow {
		points = points[:hourlyWindow]
	}

	v := &HourlyView{
		ChartID:       fmt.Sprintf("hourly-%d", chartSeq.Add(1)),
		Labels:        make([]string, 0, len(points)),
		Temps:         make([]float64, 0, len(points)),
		Precip:        make([]int, 0, len(points)),
		PrecipAxisMin: 0,
		PrecipAxisMax: 100,
	}

	for _, h := range points {
		local := time.Unix(h.Dt+int64(p.Timezone), 0).UTC()
		v.Labels = append(v.Labels, local.Format("15:04"))
		v.Temps = append(v.Temps, h.Temp)

		pct := int(math.Round(h.Pop * 100))
		if pct < 0 {
			pct = 0
		} else if pct > 100 {
			pct = 100
		}
		v.Precip = append(v.Precip, pct)
	}

	return v
}

// DailyCard is one day in the daily strip.
type DailyCard struct {
	Label     string `json:"label"`
	Icon      string `json:"icon,omitempty"`
	TempMax   int    `json:"temp_max"`
	TempMin   int    `json:"temp_min"`
	Condition string `json:"condition,omitempty"`
}

// BuildDaily takes the first 7 daily points. The adapter replaces the
// whole container on each render, so the slice is the full view.
func BuildDaily(p *weather.Payload) []DailyCard {
	if p == nil || len(p.Daily) == 0 {
		return nil
	}

	points := p.Daily
	if len(points) > dailyWindow {
		points = points[:dailyWindow]
	}

	cards := make([]DailyCard, 0, len(points))
	for _, d := range points {
		local := time.Unix(d.Dt+int64(p.Timezone), 0).UTC()
		cards = append(cards, DailyCard{
			Label:     local.Format("Mon, Jan 2"),
			Icon:      d.Condition.Icon,
			TempMax:   int(math.Round(d.TempMax)),
			TempMin:   int(math.Round(d.TempMin)),
			Condition: d.Condition.Main,
		})
	}
	return cards
}

// AirQualityView is the single AQI badge.
type AirQualityView struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
}

var aqiBands = map[int]AirQualityView{
	1: {Index: 1, Label: "Good", Color: "#10b981", TextColor: "#064e3b"},
	2: {Index: 2, Label: "Fair", Color: "#60a5fa", TextColor: "#1e3a8a"},
	3: {Index: 3, Label: "Moderate", Color: "#facc15", TextColor: "#713f12"},
	4: {Index: 4, Label: "Poor", Color: "#f97316", TextColor: "#7c2d12"},
	5: {Index: 5, Label: "Very Poor", Color: "#ef4444", TextColor: "#7f1d1d"},
}

// BuildAirQuality returns nil when there is no air-quality data or the
// index falls outside the 1–5 ordinal range.
func BuildAirQuality(p *weather.Payload) *AirQualityView {
	if p == nil || p.AirPollution == nil {
		return nil
	}
	band, ok := aqiBands[p.AirPollution.AQI]
	if !ok {
		return nil
	}
	return &band
}

// AlertView is one alert block.
type AlertView struct {
	Event       string `json:"event"`
	Sender      string `json:"sender,omitempty"`
	Description string `json:"description,omitempty"`
}

// BuildAlerts passes alerts through in payload order — no deduplication,
// truncation, or severity sorting.
func BuildAlerts(p *weather.Payload) []AlertView {
	if p == nil || len(p.Alerts) == 0 {
		return nil
	}
	views := make([]AlertView, 0, len(p.Alerts))
	for _, a := range p.Alerts {
		views = append(views, AlertView{Event: a.Event, Sender: a.SenderName, Description: a.Description})
	}
	return views
}

// MapView recenters the map and positions its single marker. The adapter
// repositions the existing marker rather than recreating it.
type MapView struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom int     `json:"zoom"`
}

// BuildMap returns nil unless the payload carries finite coordinates. An
// uninitialized map on the adapter side simply ignores the view.
func BuildMap(p *weather.Payload) *MapView {
	if p == nil || !p.HasFiniteCoords() {
		return nil
	}
	return &MapView{Lat: p.Lat, Lon: p.Lon, Zoom: mapZoom}
}

// View is the full dashboard render of one payload.
type View struct {
	Current    *CurrentView    `json:"current,omitempty"`
	Hourly     *HourlyView     `json:"hourly,omitempty"`
	Daily      []DailyCard     `json:"daily,omitempty"`
	AirQuality *AirQualityView `json:"air_quality,omitempty"`
	Alerts     []AlertView     `json:"alerts,omitempty"`
	Map        *MapView        `json:"map,omitempty"`
}

// Build renders every section of the dashboard from one payload.
func Build(p *weather.Payload, now time.Time) *View {
	return &View{
		Current:    BuildCurrent(p, now),
		Hourly:     BuildHourly(p),
		Daily:      BuildDaily(p),
		AirQuality: BuildAirQuality(p),
		Alerts:     BuildAlerts(p),
		Map:        BuildMap(p),
	}
}

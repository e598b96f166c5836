package weather_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycast-dev/skycast/internal/weather"
)

type upstream struct {
	geoDirect  func(w http.ResponseWriter, r *http.Request)
	geoReverse func(w http.ResponseWriter, r *http.Request)
	oneCall    func(w http.ResponseWriter, r *http.Request)
	air        func(w http.ResponseWriter, r *http.Request)
}

func respondJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

const parisGeo = `[{"name":"Paris","lat":48.85,"lon":2.35,"country":"FR"}]`

const parisOneCall = `{
	"timezone_offset": 3600,
	"current": {
		"temp": 21.6, "humidity": 40, "wind_speed": 3.2, "uvi": 4,
		"sunrise": 100, "sunset": 200,
		"weather": [{"id": 800, "main": "Clear", "description": "clear sky", "icon": "01d"}]
	},
	"hourly": [{"dt": 1000, "temp": 21.0, "pop": 0.3}],
	"daily": [{"dt": 2000, "temp": {"max": 24.0, "min": 12.0}, "weather": [{"id": 801, "main": "Clouds", "icon": "02d"}]}],
	"alerts": [{"sender_name": "NWS", "event": "Storm", "description": "heavy rain"}]
}`

const parisAir = `{"list":[{"main":{"aqi":2}}]}`

// newTestClient spins up one httptest server routing the three upstream
// endpoints and returns a client pointed at it.
func newTestClient(t *testing.T, u upstream) *weather.Client {
	t.Helper()

	mux := http.NewServeMux()
	or := func(h func(http.ResponseWriter, *http.Request), fallback string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if h != nil {
				h(w, r)
				return
			}
			respondJSON(w, fallback)
		}
	}
	mux.HandleFunc("/geo/direct", or(u.geoDirect, parisGeo))
	mux.HandleFunc("/geo/reverse", or(u.geoReverse, parisGeo))
	mux.HandleFunc("/onecall", or(u.oneCall, parisOneCall))
	mux.HandleFunc("/air", or(u.air, parisAir))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return weather.NewClientWithURLs("test-key", srv.URL+"/geo", srv.URL+"/onecall", srv.URL+"/air", log)
}

func TestFetch_TextQuery(t *testing.T) {
	c := newTestClient(t, upstream{})

	p, err := c.Fetch(context.Background(), weather.Query{Text: "Paris"}, weather.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "Paris, FR", p.Location)
	assert.Equal(t, 48.85, p.Lat)
	assert.Equal(t, 2.35, p.Lon)
	assert.Equal(t, 3600, p.Timezone)
	assert.Equal(t, weather.UnitsMetric, p.Units)

	require.NotNil(t, p.Current)
	assert.Equal(t, 21.6, p.Current.Temp)
	assert.Equal(t, "clear sky", p.Current.Condition.Description)
	assert.Equal(t, int64(100), p.Current.Sunrise)

	require.Len(t, p.Hourly, 1)
	assert.Equal(t, 0.3, p.Hourly[0].Pop)

	require.Len(t, p.Daily, 1)
	assert.Equal(t, 24.0, p.Daily[0].TempMax)
	assert.Equal(t, "Clouds", p.Daily[0].Condition.Main)

	require.NotNil(t, p.AirPollution)
	assert.Equal(t, 2, p.AirPollution.AQI)

	require.Len(t, p.Alerts, 1)
	assert.Equal(t, "Storm", p.Alerts[0].Event)
	assert.Equal(t, "NWS", p.Alerts[0].SenderName)
}

func TestFetch_CoordQueryReverseGeocodes(t *testing.T) {
	c := newTestClient(t, upstream{})

	p, err := c.Fetch(context.Background(), weather.Query{Lat: 48.85, Lon: 2.35, HasCoords: true}, weather.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "Paris, FR", p.Location)
}

func TestFetch_ReverseGeocodeFailureTolerated(t *testing.T) {
	c := newTestClient(t, upstream{
		geoReverse: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	})

	p, err := c.Fetch(context.Background(), weather.Query{Lat: 48.85, Lon: 2.35, HasCoords: true}, weather.DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, p.Location, "payload renders without a label")
	require.NotNil(t, p.Current)
}

func TestFetch_UnknownLocation(t *testing.T) {
	c := newTestClient(t, upstream{
		geoDirect: func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, `[]`)
		},
	})

	_, err := c.Fetch(context.Background(), weather.Query{Text: "Atlantis"}, weather.DefaultOptions())
	require.Error(t, err)

	var fe *weather.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.Status)
}

func TestFetch_ForecastFailureFailsFetch(t *testing.T) {
	c := newTestClient(t, upstream{
		oneCall: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	})

	_, err := c.Fetch(context.Background(), weather.Query{Text: "Paris"}, weather.DefaultOptions())
	require.Error(t, err)

	var fe *weather.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusInternalServerError, fe.Status)
}

func TestFetch_AirFailureNonFatal(t *testing.T) {
	c := newTestClient(t, upstream{
		air: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		},
	})

	p, err := c.Fetch(context.Background(), weather.Query{Text: "Paris"}, weather.DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, p.AirPollution)
	require.NotNil(t, p.Current)
}

func TestFetch_PassesUnitsAndLang(t *testing.T) {
	var gotUnits, gotLang string
	c := newTestClient(t, upstream{
		oneCall: func(w http.ResponseWriter, r *http.Request) {
			gotUnits = r.URL.Query().Get("units")
			gotLang = r.URL.Query().Get("lang")
			respondJSON(w, parisOneCall)
		},
	})

	_, err := c.Fetch(context.Background(), weather.Query{Text: "Paris"},
		weather.DisplayOptions{Units: weather.UnitsImperial, Lang: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "imperial", gotUnits)
	assert.Equal(t, "fr", gotLang)
}

func TestFetch_InvalidQuery(t *testing.T) {
	c := newTestClient(t, upstream{})

	_, err := c.Fetch(context.Background(), weather.Query{}, weather.DefaultOptions())
	require.Error(t, err)
}

func TestFetch_MalformedForecastBody(t *testing.T) {
	c := newTestClient(t, upstream{
		oneCall: func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, `{not json`)
		},
	})

	_, err := c.Fetch(context.Background(), weather.Query{Text: "Paris"}, weather.DefaultOptions())
	require.Error(t, err)

	var fe *weather.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 0, fe.Status)
}

func TestPayloadJSONShape(t *testing.T) {
	c := newTestClient(t, upstream{})

	p, err := c.Fetch(context.Background(), weather.Query{Text: "Paris"}, weather.DefaultOptions())
	require.NoError(t, err)

	b, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, key := range []string{"location", "lat", "lon", "timezone", "units", "current", "hourly", "daily", "air_pollution", "alerts"} {
		assert.Contains(t, m, key)
	}
}

package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const httpTimeout = 10 * time.Second

// Client fetches and assembles weather payloads from OpenWeather.
// Text queries are geocoded first; coordinate queries are reverse-geocoded
// for a display label. Every upstream call waits on the shared rate gate.
type Client struct {
	apiKey     string
	geoURL     string
	oneCallURL string
	airURL     string
	client     *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// NewClient constructs a Client against the given base URLs.
// rps/burst bound the upstream request rate across all endpoints.
func NewClient(apiKey, geoURL, oneCallURL, airURL string, timeout time.Duration, rps float64, burst int, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = httpTimeout
	}
	return &Client{
		apiKey:     apiKey,
		geoURL:     geoURL,
		oneCallURL: oneCallURL,
		airURL:     airURL,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		log:        log,
	}
}

// NewClientWithURLs constructs a Client with an effectively unlimited rate
// gate, for tests pointing at httptest servers.
func NewClientWithURLs(apiKey, geoURL, oneCallURL, airURL string, log *slog.Logger) *Client {
	return NewClient(apiKey, geoURL, oneCallURL, airURL, httpTimeout, 1000, 1000, log)
}

// doGet performs a rate-gated GET and decodes the JSON response into dst.
// Non-200 statuses come back as *FetchError so callers can surface the
// upstream status.
func (c *Client) doGet(ctx context.Context, rawURL string, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait canceled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &FetchError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &FetchError{Status: resp.StatusCode, Message: fmt.Sprintf("upstream returned status %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &FetchError{Message: "malformed upstream response: " + err.Error()}
	}

	return nil
}

type geoEntry struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

func (g geoEntry) label() string {
	if g.Country != "" {
		return g.Name + ", " + g.Country
	}
	return g.Name
}

type oneCallResponse struct {
	TimezoneOffset int `json:"timezone_offset"`
	Current        *struct {
		Temp      float64 `json:"temp"`
		Humidity  int     `json:"humidity"`
		WindSpeed float64 `json:"wind_speed"`
		UVI       float64 `json:"uvi"`
		Sunrise   int64   `json:"sunrise"`
		Sunset    int64   `json:"sunset"`
		Weather   []struct {
			ID          int    `json:"id"`
			Main        string `json:"main"`
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
	} `json:"current"`
	Hourly []struct {
		Dt   int64   `json:"dt"`
		Temp float64 `json:"temp"`
		Pop  float64 `json:"pop"`
	} `json:"hourly"`
	Daily []struct {
		Dt   int64 `json:"dt"`
		Temp struct {
			Max float64 `json:"max"`
			Min float64 `json:"min"`
		} `json:"temp"`
		Weather []struct {
			ID          int    `json:"id"`
			Main        string `json:"main"`
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
	} `json:"daily"`
	Alerts []struct {
		SenderName  string `json:"sender_name"`
		Event       string `json:"event"`
		Description string `json:"description"`
	} `json:"alerts"`
}

type airResponse struct {
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
	} `json:"list"`
}

// geocode resolves a place name to coordinates and a display label.
// An empty result set is a 404-shaped FetchError.
func (c *Client) geocode(ctx context.Context, text string) (*geoEntry, error) {
	endpoint := c.geoURL + "/direct?q=" + url.QueryEscape(text) + "&limit=1&appid=" + c.apiKey

	var entries []geoEntry
	if err := c.doGet(ctx, endpoint, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &FetchError{Status: http.StatusNotFound, Message: "location not found: " + text}
	}
	return &entries[0], nil
}

// reverseGeocode resolves coordinates to a display label. Failure is
// tolerated: the payload just renders without a location name.
func (c *Client) reverseGeocode(ctx context.Context, lat, lon float64) string {
	endpoint := c.geoURL + "/reverse?lat=" + formatCoord(lat) + "&lon=" + formatCoord(lon) + "&limit=1&appid=" + c.apiKey

	var entries []geoEntry
	if err := c.doGet(ctx, endpoint, &entries); err != nil || len(entries) == 0 {
		if err != nil {
			c.log.Warn("reverse geocode failed", "lat", lat, "lon", lon, "err", err)
		}
		return ""
	}
	return entries[0].label()
}

// Fetch performs one fresh round trip: resolve coordinates, then pull the
// forecast and air-quality data in parallel. Air-quality failure is
// non-fatal; forecast failure fails the fetch. No retries, no caching.
func (c *Client) Fetch(ctx context.Context, q Query, opts DisplayOptions) (*Payload, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	lat, lon := q.Lat, q.Lon
	label := ""
	if q.HasCoords {
		label = c.reverseGeocode(ctx, lat, lon)
	} else {
		entry, err := c.geocode(ctx, q.Text)
		if err != nil {
			return nil, err
		}
		lat, lon = entry.Lat, entry.Lon
		label = entry.label()
	}

	var forecast oneCallResponse
	var air airResponse
	airOK := false

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		endpoint := c.oneCallURL +
			"?lat=" + formatCoord(lat) +
			"&lon=" + formatCoord(lon) +
			"&units=" + url.QueryEscape(opts.Units) +
			"&lang=" + url.QueryEscape(opts.Lang) +
			"&exclude=minutely&appid=" + c.apiKey
		return c.doGet(gCtx, endpoint, &forecast)
	})

	g.Go(func() error {
		endpoint := c.airURL + "?lat=" + formatCoord(lat) + "&lon=" + formatCoord(lon) + "&appid=" + c.apiKey
		if err := c.doGet(gCtx, endpoint, &air); err != nil {
			c.log.Warn("air pollution fetch failed", "lat", lat, "lon", lon, "err", err)
			return nil
		}
		airOK = true
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assemblePayload(label, lat, lon, opts.Units, &forecast, &air, airOK), nil
}

func assemblePayload(label string, lat, lon float64, units string, forecast *oneCallResponse, air *airResponse, airOK bool) *Payload {
	p := &Payload{
		Location: label,
		Lat:      lat,
		Lon:      lon,
		Timezone: forecast.TimezoneOffset,
		Units:    units,
	}

	if forecast.Current != nil {
		cur := &Current{
			Temp:      forecast.Current.Temp,
			Humidity:  forecast.Current.Humidity,
			WindSpeed: forecast.Current.WindSpeed,
			UVI:       forecast.Current.UVI,
			Sunrise:   forecast.Current.Sunrise,
			Sunset:    forecast.Current.Sunset,
		}
		if len(forecast.Current.Weather) > 0 {
			w := forecast.Current.Weather[0]
			cur.Condition = Condition{Code: w.ID, Main: w.Main, Description: w.Description, Icon: w.Icon}
		}
		p.Current = cur
	}

	for _, h := range forecast.Hourly {
		p.Hourly = append(p.Hourly, HourlyPoint{Dt: h.Dt, Temp: h.Temp, Pop: h.Pop})
	}

	for _, d := range forecast.Daily {
		dp := DailyPoint{Dt: d.Dt, TempMax: d.Temp.Max, TempMin: d.Temp.Min}
		if len(d.Weather) > 0 {
			w := d.Weather[0]
			dp.Condition = Condition{Code: w.ID, Main: w.Main, Description: w.Description, Icon: w.Icon}
		}
		p.Daily = append(p.Daily, dp)
	}

	for _, a := range forecast.Alerts {
		p.Alerts = append(p.Alerts, Alert{Event: a.Event, SenderName: a.SenderName, Description: a.Description})
	}

	if airOK && len(air.List) > 0 {
		p.AirPollution = &AirPollution{AQI: air.List[0].Main.AQI}
	}

	return p
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package dashboard

import (
	"net/url"
	"strconv"

	"github.com/skycast-dev/skycast/internal/store"
	"github.com/skycast-dev/skycast/internal/weather"
)

// Resolution is the outcome of initial query resolution. When Query is nil
// the client adapter should request device geolocation and retry with
// coordinates; a denied or unavailable geolocation stays silent and
// nothing is rendered.
type Resolution struct {
	Query     *weather.Query
	Geolocate bool
}

// ResolveInitial decides what to show on load, in strict precedence order:
// the q URL param, then a lat+lon param pair, then the newest recent
// search, then a geolocation request. This order determines what a
// first-time visitor sees and must not change.
func ResolveInitial(params url.Values, recents []store.RecentEntry) Resolution {
	if q := params.Get("q"); q != "" {
		return Resolution{Query: &weather.Query{Text: q}}
	}

	if lat, lon, ok := coordParams(params); ok {
		return Resolution{Query: &weather.Query{Lat: lat, Lon: lon, HasCoords: true}}
	}

	if len(recents) > 0 {
		r := recents[0]
		return Resolution{Query: &weather.Query{Lat: r.Lat, Lon: r.Lon, HasCoords: true, Text: r.Query}}
	}

	return Resolution{Geolocate: true}
}

// coordParams parses the lat+lon pair. Malformed or partial pairs fall
// through to the next precedence step rather than erroring.
func coordParams(params url.Values) (lat, lon float64, ok bool) {
	latStr, lonStr := params.Get("lat"), params.Get("lon")
	if latStr == "" || lonStr == "" {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// OptionsFromParams seeds display options from URL params when present,
// otherwise leaves them at the defaults.
func OptionsFromParams(params url.Values) weather.DisplayOptions {
	opts := weather.DefaultOptions()
	if units := params.Get("units"); units != "" {
		opts.Units = units
	}
	if lang := params.Get("lang"); lang != "" {
		opts.Lang = lang
	}
	return opts
}

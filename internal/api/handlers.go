package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/skycast-dev/skycast/internal/dashboard"
	"github.com/skycast-dev/skycast/internal/storage"
	"github.com/skycast-dev/skycast/internal/store"
	"github.com/skycast-dev/skycast/internal/weather"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	fetcher  WeatherFetcher
	sessions *dashboard.Sessions
	store    VisitorStore
	history  SearchHistory // nil when no database is configured
	tileKey  string
	log      *slog.Logger
}

// NewHandlers constructs Handlers. history may be nil.
func NewHandlers(fetcher WeatherFetcher, sessions *dashboard.Sessions, visitorStore VisitorStore, history SearchHistory, tileKey string, log *slog.Logger) *Handlers {
	return &Handlers{
		fetcher:  fetcher,
		sessions: sessions,
		store:    visitorStore,
		history:  history,
		tileKey:  tileKey,
		log:      log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fetchStatus maps a fetch failure to the status surfaced to the client.
// Upstream statuses pass through; network-level failures become 502.
func fetchStatus(err error) int {
	var fe *weather.FetchError
	if errors.As(err, &fe) && fe.Status != 0 {
		return fe.Status
	}
	return http.StatusBadGateway
}

// GetWeather handles GET /api/weather — the stateless proxy endpoint.
// Requires q or a lat+lon pair; units and lang parameterize the upstream
// request. Failures surface as an error body the page renders inline; the
// proxy never touches persisted state.
func (h *Handlers) GetWeather(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := weather.Query{Text: params.Get("q")}
	if q.Text == "" {
		res := dashboard.ResolveInitial(params, nil)
		if res.Query == nil || !res.Query.HasCoords {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q or lat+lon is required"})
			return
		}
		q = *res.Query
	}

	payload, err := h.fetcher.Fetch(r.Context(), q, dashboard.OptionsFromParams(params))
	if err != nil {
		h.log.Error("weather fetch failed", "q", q.Text, "err", err)
		writeJSON(w, fetchStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

// GetConfig handles GET /config. The tile key is optional; its absence
// just means the radar overlay never appears.
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := map[string]string{}
	if h.tileKey != "" {
		cfg["tile_api_key"] = h.tileKey
	}
	writeJSON(w, http.StatusOK, cfg)
}

type dashboardResponse struct {
	*dashboard.View
	ShareURL  string                `json:"share_url,omitempty"`
	Recents   []store.RecentEntry   `json:"recent"`
	Favorites []store.FavoriteEntry `json:"favorites"`
}

// GetDashboard handles GET /api/v1/dashboard — the full pipeline: resolve
// the query, fetch, build view models, record the recent search, and
// return the share URL. A request that names no location but has a live
// session re-runs the last query, so a units or language toggle keeps the
// exact search on screen instead of replaying a recent. A fetch failure
// returns an error body and mutates nothing; when resolution falls all the
// way through, the client is asked to geolocate and retry with coordinates.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	visitor := VisitorFrom(ctx)
	params := r.URL.Query()
	opts := dashboard.OptionsFromParams(params)

	recents, err := h.store.Recents(ctx, visitor)
	if err != nil {
		h.log.Warn("loading recents failed", "visitor", visitor, "err", err)
	}

	sess := h.sessions.Get(visitor)

	if !hasLocationParams(params) {
		payload, ok, err := sess.Refresh(ctx, opts)
		if err != nil {
			h.log.Error("dashboard refresh failed", "visitor", visitor, "err", err)
			writeJSON(w, fetchStatus(err), map[string]string{"error": err.Error()})
			return
		}
		if ok {
			q, _, _ := sess.Last()
			h.renderDashboard(ctx, w, sess, visitor, payload, q.Text, opts, recents)
			return
		}
	}

	res := dashboard.ResolveInitial(params, recents)
	if res.Geolocate {
		writeJSON(w, http.StatusOK, map[string]string{"action": "geolocate"})
		return
	}

	payload, err := sess.Fetch(ctx, *res.Query, opts)
	if err != nil {
		h.log.Error("dashboard fetch failed", "visitor", visitor, "err", err)
		writeJSON(w, fetchStatus(err), map[string]string{"error": err.Error()})
		return
	}

	h.renderDashboard(ctx, w, sess, visitor, payload, res.Query.Text, opts, recents)
}

// hasLocationParams reports whether the request names a location directly.
func hasLocationParams(params url.Values) bool {
	return params.Get("q") != "" || params.Get("lat") != "" || params.Get("lon") != ""
}

// renderDashboard finishes a successful fetch: builds the view models,
// records the recent search and the history entry, and writes the response.
func (h *Handlers) renderDashboard(ctx context.Context, w http.ResponseWriter, sess *dashboard.Session, visitor string, payload *weather.Payload, queryText string, opts weather.DisplayOptions, recents []store.RecentEntry) {
	view := dashboard.Build(payload, time.Now())

	if payload.Location != "" {
		updated, err := h.store.RecordRecent(ctx, visitor, store.RecentEntry{
			Lat:   payload.Lat,
			Lon:   payload.Lon,
			Label: payload.Location,
			Query: queryText,
		})
		if err != nil {
			h.log.Warn("recording recent search failed", "visitor", visitor, "err", err)
		} else {
			recents = updated
		}
	}

	h.recordHistory(ctx, payload, opts)

	favs, err := h.store.Favorites(ctx, visitor)
	if err != nil {
		h.log.Warn("loading favorites failed", "visitor", visitor, "err", err)
	}

	shareURL, _ := sess.ShareURL("/", opts)

	writeJSON(w, http.StatusOK, dashboardResponse{
		View:      view,
		ShareURL:  shareURL,
		Recents:   recents,
		Favorites: favs,
	})
}

// recordHistory appends the fetch to the audit trail, best-effort.
func (h *Handlers) recordHistory(ctx context.Context, payload *weather.Payload, opts weather.DisplayOptions) {
	if h.history == nil || payload.Current == nil || payload.Location == "" {
		return
	}
	err := h.history.RecordSearch(ctx, storage.Search{
		Label:       payload.Location,
		Lat:         payload.Lat,
		Lon:         payload.Lon,
		Units:       opts.Units,
		Lang:        opts.Lang,
		Temperature: payload.Current.Temp,
	})
	if err != nil {
		h.log.Warn("recording search history failed", "label", payload.Location, "err", err)
	}
}

// ListRecent handles GET /api/v1/recent.
func (h *Handlers) ListRecent(w http.ResponseWriter, r *http.Request) {
	recents, err := h.store.Recents(r.Context(), VisitorFrom(r.Context()))
	if err != nil {
		h.log.Error("loading recents failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if recents == nil {
		recents = []store.RecentEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recent": recents})
}

// ListFavorites handles GET /api/v1/favorites.
func (h *Handlers) ListFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := h.store.Favorites(r.Context(), VisitorFrom(r.Context()))
	if err != nil {
		h.log.Error("loading favorites failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if favs == nil {
		favs = []store.FavoriteEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favs})
}

// AddFavorite handles POST /api/v1/favorites with body {label, lat, lon}.
// Adding an already-pinned label is a no-op.
func (h *Handlers) AddFavorite(w http.ResponseWriter, r *http.Request) {
	var entry store.FavoriteEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
		return
	}
	if entry.Label == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "label is required"})
		return
	}

	favs, err := h.store.AddFavorite(r.Context(), VisitorFrom(r.Context()), entry)
	if err != nil {
		h.log.Error("adding favorite failed", "label", entry.Label, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favs})
}

// RemoveFavorite handles DELETE /api/v1/favorites?label=...
func (h *Handlers) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")
	if label == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "label is required"})
		return
	}

	favs, err := h.store.RemoveFavorite(r.Context(), VisitorFrom(r.Context()), label)
	if err != nil {
		h.log.Error("removing favorite failed", "label", label, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if favs == nil {
		favs = []store.FavoriteEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favs})
}

// TopSearches handles GET /api/v1/history/top.
func (h *Handlers) TopSearches(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"top": []storage.SearchCount{}})
		return
	}

	top, err := h.history.TopSearches(r.Context(), 10)
	if err != nil {
		h.log.Error("loading top searches failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if top == nil {
		top = []storage.SearchCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"top": top})
}

// Pinger reports backend connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks redis and,
// when configured, postgres connectivity.
func HealthHandlerFunc(redis, db Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		redisStatus := "ok"
		dbStatus := "disabled"

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if db != nil {
			dbStatus = "ok"
			if err := db.Ping(ctx); err != nil {
				log.Error("health check: db ping failed", "err", err)
				dbStatus = "error"
				status = http.StatusServiceUnavailable
			}
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"redis":  redisStatus,
			"db":     dbStatus,
		})
	}
}

package dashboard

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"github.com/skycast-dev/skycast/internal/weather"
)

// Fetcher is the weather client as the session sees it.
type Fetcher interface {
	Fetch(ctx context.Context, q weather.Query, opts weather.DisplayOptions) (*weather.Payload, error)
}

// Session holds one visitor's pipeline state: the last issued query and
// the last successful payload. It replaces the module-level globals of the
// browser implementation with an explicit state object. Overlapping
// fetches both run to completion and the last writer wins; that stale-
// result race is accepted, not guarded.
type Session struct {
	fetcher Fetcher

	mu          sync.Mutex
	lastQuery   *weather.Query
	lastPayload *weather.Payload
}

func NewSession(fetcher Fetcher) *Session {
	return &Session{fetcher: fetcher}
}

// Fetch performs one fetch for the query. On success the query and payload
// become the session's "last" state; on failure the previous state is left
// untouched so the caller renders an inline error over the old view.
func (s *Session) Fetch(ctx context.Context, q weather.Query, opts weather.DisplayOptions) (*weather.Payload, error) {
	payload, err := s.fetcher.Fetch(ctx, q, opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastQuery = &q
	s.lastPayload = payload
	s.mu.Unlock()

	return payload, nil
}

// Refresh re-runs the last issued query unchanged, used when units or
// language change. Returns false when nothing has been fetched yet.
func (s *Session) Refresh(ctx context.Context, opts weather.DisplayOptions) (*weather.Payload, bool, error) {
	s.mu.Lock()
	q := s.lastQuery
	s.mu.Unlock()

	if q == nil {
		return nil, false, nil
	}
	payload, err := s.Fetch(ctx, *q, opts)
	return payload, true, err
}

// Last returns the session's last query and payload, if any.
func (s *Session) Last() (weather.Query, *weather.Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastQuery == nil || s.lastPayload == nil {
		return weather.Query{}, nil, false
	}
	return *s.lastQuery, s.lastPayload, true
}

// ShareURL encodes the session's state as a deep link: coordinates when
// the payload has them, the original text query when one was typed, and
// the live display options. It reflects only successful fetches — the
// session state never advances on error, so neither does the link.
func (s *Session) ShareURL(path string, opts weather.DisplayOptions) (string, bool) {
	q, payload, ok := s.Last()
	if !ok {
		return "", false
	}
	return shareURL(path, q, payload, opts), true
}

func shareURL(path string, q weather.Query, payload *weather.Payload, opts weather.DisplayOptions) string {
	params := url.Values{}
	if payload.HasFiniteCoords() {
		params.Set("lat", strconv.FormatFloat(payload.Lat, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(payload.Lon, 'f', -1, 64))
	}
	if q.Text != "" {
		params.Set("q", q.Text)
	}
	params.Set("units", opts.Units)
	params.Set("lang", opts.Lang)
	return path + "?" + params.Encode()
}

// Sessions is the registry of per-visitor sessions, keyed by the visitor
// cookie. Sessions are created on first use and live for the process.
type Sessions struct {
	fetcher Fetcher

	mu sync.Mutex
	m  map[string]*Session
}

func NewSessions(fetcher Fetcher) *Sessions {
	return &Sessions{fetcher: fetcher, m: make(map[string]*Session)}
}

// Get returns the visitor's session, creating it if needed.
func (ss *Sessions) Get(visitor string) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	sess, ok := ss.m[visitor]
	if !ok {
		sess = NewSession(ss.fetcher)
		ss.m[visitor] = sess
	}
	return sess
}

package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

// The visitor cookie is the server-side stand-in for the browser's local
// storage identity: recents, favorites, and session state all key off it.
const visitorCookieName = "skycast_visitor"

type contextKey int

const visitorKey contextKey = iota

// VisitorID assigns each browser a stable random identifier via cookie and
// places it on the request context.
func VisitorID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(visitorCookieName); err == nil && c.Value != "" {
			id = c.Value
		}

		if id == "" {
			id = newVisitorID()
			http.SetCookie(w, &http.Cookie{
				Name:     visitorCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), visitorKey, id)))
	})
}

// VisitorFrom returns the visitor ID placed on the context by VisitorID.
func VisitorFrom(ctx context.Context) string {
	if id, ok := ctx.Value(visitorKey).(string); ok {
		return id
	}
	return ""
}

func newVisitorID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

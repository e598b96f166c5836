package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	recentCap   = 5
	favoriteCap = 8

	recentKeyPrefix   = "skycast:v2:recent:"
	favoriteKeyPrefix = "skycast:v2:favs:"

	// legacyRecentKeyPrefix is migration debt: an older release wrote
	// recents under this unversioned name. It is read once as a fallback
	// when the versioned key is absent, then migrated forward. Do not
	// write to it.
	legacyRecentKeyPrefix = "skycast:recent:"
)

// RecentEntry is one remembered search: the coordinates the search
// resolved to, its display label, and the text originally typed (empty for
// coordinate-only searches).
type RecentEntry struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label string  `json:"label"`
	Query string  `json:"q,omitempty"`
}

// FavoriteEntry is one pinned location.
type FavoriteEntry struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Store keeps per-visitor recent-search and favorite lists in Redis as
// JSON arrays, mirroring the browser localStorage contract: bounded,
// label-deduplicated, most-recent-first, durable across reloads.
type Store struct {
	client *redis.Client
	log    *slog.Logger
}

func New(client *redis.Client, log *slog.Logger) *Store {
	return &Store{client: client, log: log}
}

// Recents returns the visitor's recent searches, newest first. A missing
// versioned key falls back to the legacy key once and migrates it forward.
func (s *Store) Recents(ctx context.Context, visitor string) ([]RecentEntry, error) {
	recents, found, err := readList[RecentEntry](ctx, s, recentKeyPrefix+visitor)
	if err != nil {
		return nil, err
	}
	if found {
		return recents, nil
	}

	migrated, err := s.migrateLegacyRecents(ctx, visitor)
	if err != nil {
		return nil, err
	}
	return migrated, nil
}

// RecordRecent removes any existing entry with the same label (exact,
// case-sensitive), prepends the new entry, truncates to the cap, persists,
// and returns the refreshed list. Call it only after a successful fetch
// that produced a location label.
func (s *Store) RecordRecent(ctx context.Context, visitor string, entry RecentEntry) ([]RecentEntry, error) {
	if entry.Label == "" {
		return s.Recents(ctx, visitor)
	}

	recents, err := s.Recents(ctx, visitor)
	if err != nil {
		return nil, err
	}

	next := make([]RecentEntry, 0, len(recents)+1)
	next = append(next, entry)
	for _, r := range recents {
		if r.Label != entry.Label {
			next = append(next, r)
		}
	}
	if len(next) > recentCap {
		next = next[:recentCap]
	}

	if err := s.writeList(ctx, recentKeyPrefix+visitor, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Favorites returns the visitor's pinned locations, newest first.
func (s *Store) Favorites(ctx context.Context, visitor string) ([]FavoriteEntry, error) {
	favs, _, err := readList[FavoriteEntry](ctx, s, favoriteKeyPrefix+visitor)
	if err != nil {
		return nil, err
	}
	return favs, nil
}

// AddFavorite prepends the entry and truncates to the cap. Adding a label
// that is already pinned is a no-op.
func (s *Store) AddFavorite(ctx context.Context, visitor string, entry FavoriteEntry) ([]FavoriteEntry, error) {
	favs, err := s.Favorites(ctx, visitor)
	if err != nil {
		return nil, err
	}

	for _, f := range favs {
		if f.Label == entry.Label {
			return favs, nil
		}
	}

	next := append([]FavoriteEntry{entry}, favs...)
	if len(next) > favoriteCap {
		next = next[:favoriteCap]
	}

	if err := s.writeList(ctx, favoriteKeyPrefix+visitor, next); err != nil {
		return nil, err
	}
	return next, nil
}

// RemoveFavorite deletes the entry with the exact label, if present.
func (s *Store) RemoveFavorite(ctx context.Context, visitor, label string) ([]FavoriteEntry, error) {
	favs, err := s.Favorites(ctx, visitor)
	if err != nil {
		return nil, err
	}

	next := favs[:0:0]
	for _, f := range favs {
		if f.Label != label {
			next = append(next, f)
		}
	}

	if err := s.writeList(ctx, favoriteKeyPrefix+visitor, next); err != nil {
		return nil, err
	}
	return next, nil
}

// readList reads a JSON array from the given key. A corrupt value is
// treated as an empty list rather than an error: the next write simply
// replaces it. Decoding goes through a local slice so a value that fails
// partway cannot leak partially decoded entries; the stored list is read
// whole or discarded.
func readList[T any](ctx context.Context, s *Store, key string) ([]T, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}

	var list []T
	if err := json.Unmarshal([]byte(val), &list); err != nil {
		s.log.Warn("discarding corrupt stored list", "key", key, "err", err)
		return nil, true, nil
	}
	return list, true, nil
}

func (s *Store) writeList(ctx context.Context, key string, list any) error {
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, b, 0).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// migrateLegacyRecents carries an unversioned-key list forward under the
// versioned name, deleting the old key.
func (s *Store) migrateLegacyRecents(ctx context.Context, visitor string) ([]RecentEntry, error) {
	recents, found, err := readList[RecentEntry](ctx, s, legacyRecentKeyPrefix+visitor)
	if err != nil || !found || len(recents) == 0 {
		return recents, err
	}

	if err := s.writeList(ctx, recentKeyPrefix+visitor, recents); err != nil {
		return nil, err
	}
	if err := s.client.Del(ctx, legacyRecentKeyPrefix+visitor).Err(); err != nil {
		s.log.Warn("deleting legacy recents key failed", "visitor", visitor, "err", err)
	}
	s.log.Info("migrated legacy recents key", "visitor", visitor, "entries", len(recents))
	return recents, nil
}

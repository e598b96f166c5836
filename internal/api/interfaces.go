package api

import (
	"context"

	"github.com/skycast-dev/skycast/internal/storage"
	"github.com/skycast-dev/skycast/internal/store"
	"github.com/skycast-dev/skycast/internal/weather"
)

// WeatherFetcher defines the upstream weather access needed by handlers.
type WeatherFetcher interface {
	Fetch(ctx context.Context, q weather.Query, opts weather.DisplayOptions) (*weather.Payload, error)
}

// VisitorStore defines the recent/favorite list operations needed by handlers.
type VisitorStore interface {
	Recents(ctx context.Context, visitor string) ([]store.RecentEntry, error)
	RecordRecent(ctx context.Context, visitor string, entry store.RecentEntry) ([]store.RecentEntry, error)
	Favorites(ctx context.Context, visitor string) ([]store.FavoriteEntry, error)
	AddFavorite(ctx context.Context, visitor string, entry store.FavoriteEntry) ([]store.FavoriteEntry, error)
	RemoveFavorite(ctx context.Context, visitor, label string) ([]store.FavoriteEntry, error)
}

// SearchHistory defines the audit-trail operations needed by handlers.
// The handlers treat it as optional: a nil history disables the feature.
type SearchHistory interface {
	RecordSearch(ctx context.Context, s storage.Search) error
	TopSearches(ctx context.Context, limit int) ([]storage.SearchCount, error)
}

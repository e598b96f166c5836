package store_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycast-dev/skycast/internal/store"
)

const visitor = "visitor-1"

func newTestStore(t *testing.T) (*store.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return store.New(client, log), mr
}

func recent(label string) store.RecentEntry {
	return store.RecentEntry{Lat: 1, Lon: 2, Label: label, Query: label}
}

// ---- recents ----

func TestRecents_EmptyForNewVisitor(t *testing.T) {
	s, _ := newTestStore(t)

	recents, err := s.Recents(context.Background(), visitor)
	require.NoError(t, err)
	assert.Empty(t, recents)
}

func TestRecordRecent_NewestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.RecordRecent(ctx, visitor, recent("Paris, FR"))
	require.NoError(t, err)
	recents, err := s.RecordRecent(ctx, visitor, recent("Oslo, NO"))
	require.NoError(t, err)

	require.Len(t, recents, 2)
	assert.Equal(t, "Oslo, NO", recents[0].Label)
	assert.Equal(t, "Paris, FR", recents[1].Label)
}

func TestRecordRecent_DuplicateLabelMovesToFront(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, label := range []string{"Paris, FR", "Oslo, NO", "Tokyo, JP"} {
		_, err := s.RecordRecent(ctx, visitor, recent(label))
		require.NoError(t, err)
	}

	recents, err := s.RecordRecent(ctx, visitor, recent("Paris, FR"))
	require.NoError(t, err)

	require.Len(t, recents, 3, "no duplicates by label")
	assert.Equal(t, "Paris, FR", recents[0].Label)
	assert.Equal(t, "Tokyo, JP", recents[1].Label)
	assert.Equal(t, "Oslo, NO", recents[2].Label)
}

func TestRecordRecent_CappedAtFive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var recents []store.RecentEntry
	var err error
	for i := 0; i < 9; i++ {
		recents, err = s.RecordRecent(ctx, visitor, recent(fmt.Sprintf("City %d", i)))
		require.NoError(t, err)
	}

	require.Len(t, recents, 5)
	assert.Equal(t, "City 8", recents[0].Label)
	assert.Equal(t, "City 4", recents[4].Label)
}

func TestRecordRecent_EmptyLabelIgnored(t *testing.T) {
	s, _ := newTestStore(t)

	recents, err := s.RecordRecent(context.Background(), visitor, store.RecentEntry{Lat: 1, Lon: 2})
	require.NoError(t, err)
	assert.Empty(t, recents)
}

func TestRecents_CorruptValueTreatedAsEmpty(t *testing.T) {
	s, mr := newTestStore(t)
	require.NoError(t, mr.Set("skycast:v2:recent:"+visitor, "not-json"))

	recents, err := s.Recents(context.Background(), visitor)
	require.NoError(t, err)
	assert.Empty(t, recents)

	// the next write replaces the corrupt value
	recents, err = s.RecordRecent(context.Background(), visitor, recent("Paris, FR"))
	require.NoError(t, err)
	require.Len(t, recents, 1)
}

func TestRecents_PartiallyValidValueDiscardedWhole(t *testing.T) {
	s, mr := newTestStore(t)
	// first element decodes cleanly, second does not: nothing may leak
	require.NoError(t, mr.Set("skycast:v2:recent:"+visitor,
		`[{"lat":48.85,"lon":2.35,"label":"Paris, FR"},{"lat":"oops"}]`))

	recents, err := s.Recents(context.Background(), visitor)
	require.NoError(t, err)
	assert.Empty(t, recents)
}

func TestRecents_LegacyKeyMigratesForward(t *testing.T) {
	s, mr := newTestStore(t)
	require.NoError(t, mr.Set("skycast:recent:"+visitor,
		`[{"lat":48.85,"lon":2.35,"label":"Paris, FR","q":"paris"}]`))

	recents, err := s.Recents(context.Background(), visitor)
	require.NoError(t, err)
	require.Len(t, recents, 1)
	assert.Equal(t, "Paris, FR", recents[0].Label)

	assert.True(t, mr.Exists("skycast:v2:recent:"+visitor), "migrated under the versioned key")
	assert.False(t, mr.Exists("skycast:recent:"+visitor), "legacy key removed after migration")
}

// ---- favorites ----

func TestAddFavorite_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.AddFavorite(ctx, visitor, store.FavoriteEntry{Label: "Paris, FR", Lat: 48.85, Lon: 2.35})
	require.NoError(t, err)
	second, err := s.AddFavorite(ctx, visitor, store.FavoriteEntry{Label: "Paris, FR", Lat: 0, Lon: 0})
	require.NoError(t, err)

	assert.Equal(t, first, second, "re-adding an existing label changes nothing")
	require.Len(t, second, 1)
	assert.Equal(t, 48.85, second[0].Lat, "original entry survives")
}

func TestAddFavorite_CappedAtEight(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var favs []store.FavoriteEntry
	var err error
	for i := 0; i < 12; i++ {
		favs, err = s.AddFavorite(ctx, visitor, store.FavoriteEntry{Label: fmt.Sprintf("City %d", i)})
		require.NoError(t, err)
	}

	require.Len(t, favs, 8)
	assert.Equal(t, "City 11", favs[0].Label)
}

func TestRemoveFavorite_ByExactLabel(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddFavorite(ctx, visitor, store.FavoriteEntry{Label: "Paris, FR"})
	require.NoError(t, err)
	_, err = s.AddFavorite(ctx, visitor, store.FavoriteEntry{Label: "Oslo, NO"})
	require.NoError(t, err)

	favs, err := s.RemoveFavorite(ctx, visitor, "Paris, FR")
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "Oslo, NO", favs[0].Label)
}

func TestRemoveFavorite_MissingLabelIsNoop(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddFavorite(ctx, visitor, store.FavoriteEntry{Label: "Paris, FR"})
	require.NoError(t, err)

	favs, err := s.RemoveFavorite(ctx, visitor, "Atlantis")
	require.NoError(t, err)
	require.Len(t, favs, 1)
}

// ---- connect ----

func TestConnect_RoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.Connect(context.Background(), "redis://"+mr.Addr(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Ping(context.Background()))

	recents, err := s.RecordRecent(context.Background(), visitor, recent("Paris, FR"))
	require.NoError(t, err)
	require.Len(t, recents, 1)
}

func TestConnect_BadURL(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := store.Connect(context.Background(), "not-a-redis-url", log)
	require.Error(t, err)
}

func TestLists_IsolatedPerVisitor(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.RecordRecent(ctx, "a", recent("Paris, FR"))
	require.NoError(t, err)

	recents, err := s.Recents(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, recents)
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Search is one recorded successful fetch.
type Search struct {
	ID          int
	Label       string
	Lat         float64
	Lon         float64
	Units       string
	Lang        string
	Temperature float64
	FetchedAt   time.Time
}

// SearchCount is one row of the most-searched summary.
type SearchCount struct {
	Label    string    `json:"label"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

// Repository is the search-history audit trail. Writes are best-effort
// from the caller's point of view: a failed insert is logged upstream and
// never fails the request that produced it.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

// RecordSearch appends one successful fetch to the history.
func (r *Repository) RecordSearch(ctx context.Context, s Search) error {
	const q = `
		INSERT INTO searches (label, lat, lon, units, lang, temperature, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	if _, err := r.q.Exec(ctx, q, s.Label, s.Lat, s.Lon, s.Units, s.Lang, s.Temperature); err != nil {
		return fmt.Errorf("inserting search for %s: %w", s.Label, err)
	}
	return nil
}

// TopSearches returns the most frequently fetched locations, most popular
// first, ties broken by recency.
func (r *Repository) TopSearches(ctx context.Context, limit int) ([]SearchCount, error) {
	const q = `
		SELECT label, COUNT(*) AS n, MAX(fetched_at) AS last_seen
		FROM searches
		GROUP BY label
		ORDER BY n DESC, last_seen DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top searches: %w", err)
	}
	defer rows.Close()

	var results []SearchCount
	for rows.Next() {
		var sc SearchCount
		if err := rows.Scan(&sc.Label, &sc.Count, &sc.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning top-search row: %w", err)
		}
		results = append(results, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating top-search rows: %w", err)
	}

	return results, nil
}

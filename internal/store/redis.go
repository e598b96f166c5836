package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Connect parses redisURL, verifies connectivity with a ping, and returns
// the visitor-list store backed by that connection.
func Connect(ctx context.Context, redisURL string, log *slog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return New(client, log), nil
}

// Ping reports connectivity of the underlying connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}

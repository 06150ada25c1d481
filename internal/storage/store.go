// Package storage picks the persistence backend and offers value-returning sessions.
package storage

import (
	"context"
	"fmt"
	"strings"

	"wb_reviews/internal/domain"
	"wb_reviews/internal/shared"
	mysqlrepo "wb_reviews/internal/storage/mysql"
	pgrepo "wb_reviews/internal/storage/postgres"
)

// Open connects the configured backend. Errors are startup-fatal.
func Open(ctx context.Context, cfg shared.DBConfig) (domain.ReviewStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "mysql":
		return mysqlrepo.Open(ctx, cfg)
	case "postgres", "postgresql", "pgx":
		return pgrepo.Open(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
}

// Query runs fn in a session and hands back its value. On error the session is
// rolled back and the zero value returned.
func Query[T any](ctx context.Context, store domain.ReviewStore, fn func(domain.ReviewSession) (T, error)) (T, error) {
	var out T
	err := store.WithSession(ctx, func(s domain.ReviewSession) error {
		v, err := fn(s)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

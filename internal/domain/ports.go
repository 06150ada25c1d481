package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicate     = errors.New("review already stored")
	ErrInvalidRecord = errors.New("invalid feedback record")
)

// FeedbackSource hands out scoped sessions against the marketplace feedback API.
type FeedbackSource interface {
	Session() FeedbackSession
}

// FeedbackSession must be closed by the caller once done, whatever the outcome of Feedbacks.
type FeedbackSession interface {
	// Feedbacks is fail-soft: transport and decode failures yield an empty slice.
	Feedbacks(ctx context.Context, productID int64, since time.Time) []map[string]any
	Close() error
}

type ReviewStore interface {
	InitSchema(ctx context.Context) error
	// WithSession commits when fn returns nil and rolls back otherwise,
	// returning fn's error untouched.
	WithSession(ctx context.Context, fn func(ReviewSession) error) error
	Ping(ctx context.Context) error
	Close() error
}

type ReviewSession interface {
	Exists(ctx context.Context, reviewID string, productID int64) (bool, error)
	// Insert fills r.ID; a unique-key violation is reported as ErrDuplicate.
	Insert(ctx context.Context, r *Review) error
	// ListBad returns rows flagged MatchesBadRating, newest first. nil productID means all products.
	ListBad(ctx context.Context, productID *int64) ([]Review, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

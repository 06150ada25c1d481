package app_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"wb_reviews/internal/domain"
)

// ---- feedback source ----

type fakeSource struct {
	records  []map[string]any
	sessions int
	closed   int
	since    time.Time
}

func (f *fakeSource) Session() domain.FeedbackSession {
	f.sessions++
	return &fakeSession{src: f}
}

type fakeSession struct{ src *fakeSource }

func (s *fakeSession) Feedbacks(ctx context.Context, productID int64, since time.Time) []map[string]any {
	s.src.since = since
	return s.src.records
}

func (s *fakeSession) Close() error {
	s.src.closed++
	return nil
}

// ---- in-memory store honoring the (review_id, nm_id) unique key ----

type memStore struct {
	mu       sync.Mutex
	rows     []domain.Review
	nextID   int64
	sessions int

	// failure injection
	failInsertFor map[string]error // review_id -> error returned by Insert
	hideExisting  bool             // Exists always reports false (stale check)
	listErr       error
}

func key(reviewID string, productID int64) string { return fmt.Sprintf("%s/%d", reviewID, productID) }

func (m *memStore) InitSchema(ctx context.Context) error { return nil }
func (m *memStore) Ping(ctx context.Context) error       { return nil }
func (m *memStore) Close() error                         { return nil }

func (m *memStore) WithSession(ctx context.Context, fn func(domain.ReviewSession) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions++
	s := &memSession{m: m}
	if err := fn(s); err != nil {
		return err // staged rows dropped: rollback
	}
	m.rows = append(m.rows, s.staged...)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memSession struct {
	m      *memStore
	staged []domain.Review
}

func (s *memSession) has(reviewID string, productID int64) bool {
	k := key(reviewID, productID)
	for _, r := range append(append([]domain.Review{}, s.m.rows...), s.staged...) {
		if key(r.ReviewID, r.ProductID) == k {
			return true
		}
	}
	return false
}

func (s *memSession) Exists(ctx context.Context, reviewID string, productID int64) (bool, error) {
	if s.m.hideExisting {
		return false, nil
	}
	return s.has(reviewID, productID), nil
}

func (s *memSession) Insert(ctx context.Context, r *domain.Review) error {
	if err, ok := s.m.failInsertFor[r.ReviewID]; ok {
		return err
	}
	if s.has(r.ReviewID, r.ProductID) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicate, key(r.ReviewID, r.ProductID))
	}
	s.m.nextID++
	r.ID = s.m.nextID
	s.staged = append(s.staged, *r)
	return nil
}

func (s *memSession) ListBad(ctx context.Context, productID *int64) ([]domain.Review, error) {
	if s.m.listErr != nil {
		return nil, s.m.listErr
	}
	out := []domain.Review{}
	for _, r := range s.m.rows {
		if !r.MatchesBadRating {
			continue
		}
		if productID != nil && r.ProductID != *productID {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedDate.After(out[j].CreatedDate) })
	return out, nil
}

// ---- cache ----

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]domain.Review
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	d, ok := dst.(*[]domain.Review)
	if !ok {
		return false, errors.New("unexpected dst type")
	}
	*d = append([]domain.Review(nil), v...)
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]domain.Review{}
	}
	c.store[key] = append([]domain.Review(nil), v.([]domain.Review)...)
	return nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.store, k)
		c.dels = append(c.dels, k)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

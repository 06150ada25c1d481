package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"wb_reviews/internal/domain"
)

type QueryService struct {
	store    domain.ReviewStore
	cache    domain.Cache
	cacheTTL time.Duration
	group    singleflight.Group
}

// NewQueryService builds the read side. cache may be nil.
func NewQueryService(store domain.ReviewStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{store: store, cache: c, cacheTTL: ttl}
}

func badReviewsKey(productID *int64) string {
	if productID == nil {
		return "bad_reviews:all"
	}
	return fmt.Sprintf("bad_reviews:%d", *productID)
}

// ListBadReviews is cache-aside over the store; concurrent misses for one key share a read.
func (s *QueryService) ListBadReviews(ctx context.Context, productID *int64) ([]domain.Review, error) {
	key := badReviewsKey(productID)
	if s.cache != nil {
		var out []domain.Review
		if ok, err := s.cache.Get(ctx, key, &out); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		} else if ok {
			return out, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		rs, err := listBad(ctx, s.store, productID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, rs, s.cacheTTL); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("cache set failed")
			}
		}
		return rs, nil
	})
	if err != nil {
		return nil, err
	}

	// singleflight hands the same slice to every waiter
	all := v.([]domain.Review)
	out := make([]domain.Review, len(all))
	for i, r := range all {
		out[i] = r.Clone()
	}
	return out, nil
}

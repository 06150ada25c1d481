package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"wb_reviews/internal/adapters/observability"
	"wb_reviews/internal/domain"
	"wb_reviews/internal/storage"
)

const (
	DefaultMinRating = 3
	DefaultDaysBack  = 3

	// prefilterMissingRating keeps records without a rating out of the bad set.
	// The entity transform defaults the same field to 0.
	prefilterMissingRating = 5
)

type IngestionService struct {
	src   domain.FeedbackSource
	store domain.ReviewStore
	cache domain.Cache
	now   func() time.Time
}

func NewIngestionService(src domain.FeedbackSource, store domain.ReviewStore, cache domain.Cache) *IngestionService {
	return &IngestionService{src: src, store: store, cache: cache, now: time.Now}
}

// FetchAndSaveBadReviews pulls the last daysBack days of feedback for productID,
// keeps those rated below minRating and stores the ones not seen before.
// It returns how many rows were newly inserted; per-record failures are logged and skipped.
func (s *IngestionService) FetchAndSaveBadReviews(ctx context.Context, productID int64, minRating, daysBack int) int {
	since := s.now().AddDate(0, 0, -daysBack)
	l := log.With().Int64("nm_id", productID).Logger()

	sess := s.src.Session()
	defer func() {
		if err := sess.Close(); err != nil {
			l.Warn().Err(err).Msg("feedback session close failed")
		}
	}()

	feedbacks := sess.Feedbacks(ctx, productID, since)
	if len(feedbacks) == 0 {
		l.Warn().Msg("no feedbacks found")
		return 0
	}

	bad := filterBad(feedbacks, minRating)
	l.Info().Int("bad", len(bad)).Int("total", len(feedbacks)).Msg("filtered feedbacks")

	saved := 0
	for _, raw := range bad {
		if s.saveReview(ctx, raw, minRating) {
			saved++
		}
	}

	if saved > 0 && s.cache != nil {
		s.invalidateBadReviews(ctx, productID)
	}
	return saved
}

func filterBad(feedbacks []map[string]any, minRating int) []map[string]any {
	out := make([]map[string]any, 0, len(feedbacks))
	for _, fb := range feedbacks {
		rating, err := domain.RatingOf(fb, prefilterMissingRating)
		if err != nil {
			log.Warn().Err(err).Interface("id", fb["id"]).Msg("skipping feedback with unreadable rating")
			observability.ObserveIngestFailure("invalid", err)
			continue
		}
		if rating < minRating {
			out = append(out, fb)
		}
	}
	return out
}

// saveReview reports whether a new row was written. The existence check is only a
// shortcut; the unique key on (review_id, nm_id) is what rejects duplicates.
func (s *IngestionService) saveReview(ctx context.Context, raw map[string]any, minRating int) bool {
	review, err := domain.FromRawRecord(raw, minRating)
	if err != nil {
		log.Error().Err(err).Interface("id", raw["id"]).Msg("error saving review")
		observability.ObserveIngestFailure("invalid", err)
		return false
	}

	inserted := false
	err = s.store.WithSession(ctx, func(sess domain.ReviewSession) error {
		exists, err := sess.Exists(ctx, review.ReviewID, review.ProductID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := sess.Insert(ctx, &review); err != nil {
			return err
		}
		inserted = true
		return nil
	})

	switch {
	case errors.Is(err, domain.ErrDuplicate):
		log.Warn().Err(err).Str("review_id", review.ReviewID).Msg("integrity error (likely duplicate)")
		observability.ObserveIngest("duplicate")
		return false
	case err != nil:
		log.Error().Err(err).Str("review_id", review.ReviewID).Int64("nm_id", review.ProductID).Msg("error saving review")
		observability.ObserveIngestFailure("failed", err)
		return false
	case !inserted:
		log.Debug().Str("review_id", review.ReviewID).Msg("review already exists")
		observability.ObserveIngest("duplicate")
		return false
	}

	log.Info().Str("review_id", review.ReviewID).Int64("nm_id", review.ProductID).Msg("saved review")
	observability.ObserveIngest("saved")
	return true
}

// GetBadReviews lists stored bad reviews, optionally for one product.
// Read failures are logged and yield an empty slice.
func (s *IngestionService) GetBadReviews(ctx context.Context, productID *int64) []domain.Review {
	out, err := listBad(ctx, s.store, productID)
	if err != nil {
		ev := log.Error().Err(err)
		if productID != nil {
			ev = ev.Int64("nm_id", *productID)
		}
		ev.Msg("error fetching reviews")
		return []domain.Review{}
	}
	return out
}

func listBad(ctx context.Context, store domain.ReviewStore, productID *int64) ([]domain.Review, error) {
	return storage.Query(ctx, store, func(sess domain.ReviewSession) ([]domain.Review, error) {
		return sess.ListBad(ctx, productID)
	})
}

func (s *IngestionService) invalidateBadReviews(ctx context.Context, productID int64) {
	if err := s.cache.Del(ctx, badReviewsKey(&productID), badReviewsKey(nil)); err != nil {
		log.Warn().Err(err).Int64("nm_id", productID).Msg("cache invalidation failed")
	}
}

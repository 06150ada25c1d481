package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Raw feedback keys as returned by the marketplace API.
const (
	keyID        = "id"
	keyProductID = "nmId"
	keyText      = "text"
	keyRating    = "productValuation"
	keyCreated   = "createdDate"
	keyUserName  = "wbUserDetails.name"
)

type Review struct {
	ID               int64     `json:"id"`
	ReviewID         string    `json:"review_id"`
	ProductID        int64     `json:"nm_id"`
	Text             *string   `json:"text,omitempty"`
	Rating           int       `json:"rating"`
	CreatedDate      time.Time `json:"created_date"`
	UserName         *string   `json:"user_name,omitempty"`
	MatchesBadRating bool      `json:"matching_rating"`
	Archived         bool      `json:"archived"`
}

// Clone returns a copy that shares no pointers with r.
func (r Review) Clone() Review {
	if r.Text != nil {
		t := *r.Text
		r.Text = &t
	}
	if r.UserName != nil {
		u := *r.UserName
		r.UserName = &u
	}
	return r
}

func (r Review) String() string {
	return fmt.Sprintf("<Review(id=%s, rating=%d, product=%d)>", r.ReviewID, r.Rating, r.ProductID)
}

// FromRawRecord normalises one raw feedback record. The bad-rating flag is computed
// here against minRating and never re-evaluated afterwards.
//
// Records without an id get a random token, so they are not deduplicated across runs.
func FromRawRecord(raw map[string]any, minRating int) (Review, error) {
	productID, _, ok := lookupInt64(raw, keyProductID)
	if !ok {
		return Review{}, fmt.Errorf("%w: missing or non-numeric %s", ErrInvalidRecord, keyProductID)
	}

	rating, err := RatingOf(raw, 0)
	if err != nil {
		return Review{}, err
	}

	createdRaw := lookupStr(raw, keyCreated)
	if createdRaw == nil {
		return Review{}, fmt.Errorf("%w: missing %s", ErrInvalidRecord, keyCreated)
	}
	created, err := ParseTimestamp(*createdRaw)
	if err != nil {
		return Review{}, err
	}

	reviewID := lookupID(raw, keyID)
	if reviewID == "" {
		reviewID = uuid.NewString()
	}

	return Review{
		ReviewID:         reviewID,
		ProductID:        productID,
		Text:             lookupStr(raw, keyText),
		Rating:           rating,
		CreatedDate:      created,
		UserName:         lookupStr(raw, keyUserName),
		MatchesBadRating: rating < minRating,
	}, nil
}

// RatingOf reads productValuation, falling back to def when the key is absent or null.
func RatingOf(raw map[string]any, def int) (int, error) {
	n, present, ok := lookupInt64(raw, keyRating)
	if !present {
		return def, nil
	}
	if !ok {
		return 0, fmt.Errorf("%w: non-numeric %s %v", ErrInvalidRecord, keyRating, lookupAny(raw, keyRating))
	}
	return int(n), nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// ParseTimestamp parses an ISO-8601 timestamp. A trailing "Z" means UTC and
// timestamps without an offset are taken as UTC too. Result is UTC, microsecond precision.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "+00:00"
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Microsecond), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: bad %s %q", ErrInvalidRecord, keyCreated, s)
}

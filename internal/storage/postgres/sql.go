package postgres

const createReviewsSQL = `
CREATE TABLE IF NOT EXISTS wb_reviews (
  id              BIGSERIAL    PRIMARY KEY,
  review_id       VARCHAR(64)  NOT NULL,
  nm_id           BIGINT       NOT NULL,
  text            TEXT         NULL,
  rating          INTEGER      NOT NULL,
  created_date    TIMESTAMPTZ  NOT NULL,
  user_name       VARCHAR(255) NULL,
  matching_rating BOOLEAN      NOT NULL DEFAULT FALSE,
  archived        BOOLEAN      NOT NULL DEFAULT FALSE,
  CONSTRAINT unique_review_product UNIQUE (review_id, nm_id)
);
CREATE INDEX IF NOT EXISTS idx_wb_reviews_bad ON wb_reviews (nm_id, matching_rating);
`

const existsReviewSQL = `
SELECT 1 FROM wb_reviews
WHERE review_id = $1 AND nm_id = $2
LIMIT 1
`

const insertReviewSQL = `
INSERT INTO wb_reviews
  (review_id, nm_id, text, rating, created_date, user_name, matching_rating, archived)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id
`

const listBadReviewsSQL = `
SELECT id, review_id, nm_id, text, rating, created_date, user_name, matching_rating, archived
FROM wb_reviews
WHERE matching_rating = TRUE AND ($1::BIGINT IS NULL OR nm_id = $1)
ORDER BY created_date DESC, id DESC
`

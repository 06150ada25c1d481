package mysql

// Note: `text` is reserved; keep it quoted everywhere.
const createReviewsSQL = "CREATE TABLE IF NOT EXISTS wb_reviews (\n" +
	"  id              BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,\n" +
	"  review_id       VARCHAR(64)  CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,\n" +
	"  nm_id           BIGINT       NOT NULL,\n" +
	"  `text`          TEXT         NULL,\n" +
	"  rating          INT          NOT NULL,\n" +
	"  created_date    DATETIME(6)  NOT NULL,\n" +
	"  user_name       VARCHAR(255) NULL,\n" +
	"  matching_rating BOOLEAN      NOT NULL DEFAULT FALSE,\n" +
	"  archived        BOOLEAN      NOT NULL DEFAULT FALSE,\n" +
	"  UNIQUE KEY unique_review_product (review_id, nm_id),\n" +
	"  KEY idx_wb_reviews_bad (nm_id, matching_rating)\n" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"

const existsReviewSQL = `
SELECT 1 FROM wb_reviews
WHERE review_id = ? AND nm_id = ?
LIMIT 1
`

const insertReviewSQL = "INSERT INTO wb_reviews\n" +
	"  (review_id, nm_id, `text`, rating, created_date, user_name, matching_rating, archived)\n" +
	"VALUES (?, ?, ?, ?, ?, ?, ?, ?)"

const listBadReviewsSQL = "SELECT id, review_id, nm_id, `text`, rating, created_date, user_name, matching_rating, archived\n" +
	"FROM wb_reviews\n" +
	"WHERE matching_rating = TRUE"

const listBadByProductSQL = listBadReviewsSQL + " AND nm_id = ?"

const orderNewestFirst = "\nORDER BY created_date DESC, id DESC"

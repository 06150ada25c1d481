package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"wb_reviews/internal/domain"
	"wb_reviews/internal/shared"
)

// errDupEntry is MySQL's ER_DUP_ENTRY.
const errDupEntry = 1062

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// Gateway is the MySQL-backed domain.ReviewStore.
type Gateway struct {
	db            *sql.DB
	borrowTimeout time.Duration
}

// Open builds the pool from cfg and pings it; any failure here is fatal for the caller.
func Open(ctx context.Context, cfg shared.DBConfig) (*Gateway, error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	conn, err := mysql.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(conn)
	db.SetMaxOpenConns(cfg.PoolSize + cfg.MaxOverflow)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(cfg.PoolRecycle)

	g := New(db, cfg.PoolTimeout)
	if err := g.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Str("addr", dsn.Addr).Str("db", dsn.DBName).Msg("connected to mysql")
	return g, nil
}

func New(db *sql.DB, borrowTimeout time.Duration) *Gateway {
	return &Gateway{db: db, borrowTimeout: borrowTimeout}
}

// normalizeDSN forces UTC timestamps scanned into time.Time.
func normalizeDSN(raw string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(raw)
	if err != nil {
		return nil, fmt.Errorf("mysql: bad dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg, nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql: ping: %w", err)
	}
	return nil
}

func (g *Gateway) InitSchema(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, createReviewsSQL); err != nil {
		return fmt.Errorf("mysql: create wb_reviews: %w", err)
	}
	log.Info().Msg("database tables ready")
	return nil
}

func (g *Gateway) Close() error {
	err := g.db.Close()
	log.Info().Msg("database connection closed")
	return err
}

// WithSession borrows one pooled connection and runs fn inside a transaction on it.
// The connection goes back to the pool on every path, panics included.
func (g *Gateway) WithSession(ctx context.Context, fn func(domain.ReviewSession) error) error {
	conn, err := g.borrow(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mysql: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&session{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("session rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("mysql: commit: %w", err))
	}
	return nil
}

func (g *Gateway) borrow(ctx context.Context) (*sql.Conn, error) {
	bctx := ctx
	if g.borrowTimeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, g.borrowTimeout)
		defer cancel()
	}
	conn, err := g.db.Conn(bctx)
	if err != nil {
		return nil, fmt.Errorf("mysql: borrow connection: %w", err)
	}
	return conn, nil
}

type session struct{ tx *sql.Tx }

func (s *session) Exists(ctx context.Context, reviewID string, productID int64) (bool, error) {
	var one int
	err := s.tx.QueryRowContext(ctx, existsReviewSQL, reviewID, productID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *session) Insert(ctx context.Context, r *domain.Review) error {
	res, err := s.tx.ExecContext(ctx, insertReviewSQL,
		r.ReviewID,
		r.ProductID,
		valStr(r.Text),
		r.Rating,
		r.CreatedDate.UTC(),
		valStr(r.UserName),
		r.MatchesBadRating,
		r.Archived,
	)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

func (s *session) ListBad(ctx context.Context, productID *int64) ([]domain.Review, error) {
	q, args := listBadReviewsSQL+orderNewestFirst, []any{}
	if productID != nil {
		q, args = listBadByProductSQL+orderNewestFirst, []any{*productID}
	}
	rows, err := s.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		var text, user sql.NullString
		if err := rows.Scan(
			&rv.ID,
			&rv.ReviewID,
			&rv.ProductID,
			&text,
			&rv.Rating,
			&rv.CreatedDate,
			&user,
			&rv.MatchesBadRating,
			&rv.Archived,
		); err != nil {
			return nil, err
		}
		if text.Valid {
			s := text.String
			rv.Text = &s
		}
		if user.Valid {
			s := user.String
			rv.UserName = &s
		}
		rv.CreatedDate = rv.CreatedDate.UTC()
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// classify maps unique-key violations onto domain.ErrDuplicate.
func classify(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == errDupEntry {
		return fmt.Errorf("%w: %s", domain.ErrDuplicate, me.Message)
	}
	return err
}

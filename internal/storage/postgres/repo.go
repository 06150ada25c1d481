package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"wb_reviews/internal/domain"
	"wb_reviews/internal/shared"
)

// uniqueViolation is SQLSTATE 23505.
const uniqueViolation = "23505"

// Gateway is the PostgreSQL-backed domain.ReviewStore.
type Gateway struct {
	pool          *pgxpool.Pool
	borrowTimeout time.Duration
}

func Open(ctx context.Context, cfg shared.DBConfig) (*Gateway, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	g := &Gateway{pool: pool, borrowTimeout: cfg.PoolTimeout}
	if err := g.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Str("host", pcfg.ConnConfig.Host).Str("db", pcfg.ConnConfig.Database).Msg("connected to postgres")
	return g, nil
}

func poolConfig(cfg shared.DBConfig) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: bad dsn: %w", err)
	}
	if n := cfg.PoolSize + cfg.MaxOverflow; n > 0 {
		pcfg.MaxConns = int32(n)
	}
	if cfg.PoolRecycle > 0 {
		pcfg.MaxConnLifetime = cfg.PoolRecycle
	}
	return pcfg, nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

func (g *Gateway) InitSchema(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, createReviewsSQL); err != nil {
		return fmt.Errorf("postgres: create wb_reviews: %w", err)
	}
	log.Info().Msg("database tables ready")
	return nil
}

func (g *Gateway) Close() error {
	g.pool.Close()
	log.Info().Msg("database connection closed")
	return nil
}

// WithSession acquires one pooled connection and runs fn inside a transaction on it.
// The connection is released on every path, panics included.
func (g *Gateway) WithSession(ctx context.Context, fn func(domain.ReviewSession) error) error {
	conn, err := g.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(&session{tx: tx}); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			log.Error().Err(rbErr).Msg("session rollback failed")
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("postgres: commit: %w", err))
	}
	return nil
}

func (g *Gateway) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	actx := ctx
	if g.borrowTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, g.borrowTimeout)
		defer cancel()
	}
	conn, err := g.pool.Acquire(actx)
	if err != nil {
		return nil, fmt.Errorf("postgres: acquire connection: %w", err)
	}
	return conn, nil
}

type session struct{ tx pgx.Tx }

func (s *session) Exists(ctx context.Context, reviewID string, productID int64) (bool, error) {
	var one int
	err := s.tx.QueryRow(ctx, existsReviewSQL, reviewID, productID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *session) Insert(ctx context.Context, r *domain.Review) error {
	err := s.tx.QueryRow(ctx, insertReviewSQL,
		r.ReviewID,
		r.ProductID,
		r.Text,
		r.Rating,
		r.CreatedDate.UTC(),
		r.UserName,
		r.MatchesBadRating,
		r.Archived,
	).Scan(&r.ID)
	return classify(err)
}

func (s *session) ListBad(ctx context.Context, productID *int64) ([]domain.Review, error) {
	rows, err := s.tx.Query(ctx, listBadReviewsSQL, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ReviewID,
			&rv.ProductID,
			&rv.Text,
			&rv.Rating,
			&rv.CreatedDate,
			&rv.UserName,
			&rv.MatchesBadRating,
			&rv.Archived,
		); err != nil {
			return nil, err
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
	if err == nil {
		return nil
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrDuplicate, pe.ConstraintName)
	}
	return err
}

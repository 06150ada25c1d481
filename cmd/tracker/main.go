package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"wb_reviews/internal/adapters/observability"
	redisad "wb_reviews/internal/adapters/redis"
	"wb_reviews/internal/adapters/wildberries"
	"wb_reviews/internal/app"
	"wb_reviews/internal/domain"
	"wb_reviews/internal/shared"
	"wb_reviews/internal/storage"
)

type options struct {
	productID int64
	minRating int
	daysBack  int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code so deferred cleanup always happens before exit.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogFile)
	observability.Serve(cfg.MetricsAddr)

	ctx := context.Background()

	store, err := storage.Open(ctx, cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database initialization failed")
		return 1
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		log.Error().Err(err).Msg("database initialization failed")
		return 1
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		cache = rc
	}

	client := wildberries.New(cfg.WBBase, cfg.WBTimeout,
		wildberries.WithRetry(cfg.MaxRetries, cfg.RetryDelay),
		wildberries.WithRateLimit(cfg.WBRPS),
		wildberries.WithToken(cfg.WBToken),
	)
	svc := app.NewIngestionService(client, store, cache)

	log.Info().
		Int64("nm_id", opts.productID).
		Int("min_rating", opts.minRating).
		Int("days_back", opts.daysBack).
		Msg("starting review collection")

	saved := svc.FetchAndSaveBadReviews(ctx, opts.productID, opts.minRating, opts.daysBack)
	log.Info().Int("saved", saved).Msg("review collection finished")

	printReport(stdout, saved, svc.GetBadReviews(ctx, &opts.productID))
	return 0
}

// parseArgs accepts flags both before and after the positional product id.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	opts := options{}
	fs := flag.NewFlagSet("tracker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&opts.minRating, "min-rating", app.DefaultMinRating, "ratings strictly below this count as bad")
	fs.IntVar(&opts.daysBack, "days-back", app.DefaultDaysBack, "how many days of feedback to fetch")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: tracker [--min-rating N] [--days-back N] <nm_id>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return opts, errors.New("missing product id (nm_id)")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return opts, fmt.Errorf("invalid product id %q: must be an integer", fs.Arg(0))
	}
	opts.productID = id

	if rest := fs.Args()[1:]; len(rest) > 0 {
		if err := fs.Parse(rest); err != nil {
			return opts, err
		}
		if fs.NArg() > 0 {
			return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
		}
	}
	if opts.daysBack < 0 {
		return opts, errors.New("--days-back must not be negative")
	}
	return opts, nil
}

func printReport(w io.Writer, saved int, reviews []domain.Review) {
	fmt.Fprintf(w, "Successfully saved %d bad reviews\n", saved)
	if len(reviews) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSaved bad reviews:")
	for _, r := range reviews {
		user := "unknown"
		if r.UserName != nil {
			user = *r.UserName
		}
		fmt.Fprintf(w, "  - Rating: %d, Date: %s, User: %s\n", r.Rating, r.CreatedDate.Format("2006-01-02 15:04:05"), user)
	}
}

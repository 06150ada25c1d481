// internal/adapters/wildberries/client.go
package wildberries

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"wb_reviews/internal/adapters/observability"
	"wb_reviews/internal/domain"
)

const (
	// PageSize is the single bounded page requested per fetch; there is no pagination loop.
	PageSize  = 5000
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	service   = "wildberries"
	endpoint  = "feedbacks"
)

var errSessionClosed = errors.New("wildberries: session closed")

type Client struct {
	base       string
	token      string
	timeout    time.Duration
	rl         *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

type Option func(*Client)

// WithRetry sets how many extra attempts a transient failure gets and the first backoff delay.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

func WithRateLimit(rps int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.rl = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

// WithToken sends the marketplace API token in the Authorization header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(base string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		base:       base,
		timeout:    timeout,
		rl:         rate.NewLimiter(rate.Limit(5), 5),
		maxRetries: 3,
		retryDelay: 2 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Session opens a scoped HTTP session with its own connection pool.
func (c *Client) Session() domain.FeedbackSession {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	return &Session{
		c:  c,
		tr: tr,
		hc: &http.Client{Timeout: c.timeout, Transport: tr},
	}
}

type Session struct {
	c      *Client
	tr     *http.Transport
	hc     *http.Client
	closed bool
}

// Close drops every pooled connection of the session. Safe to call twice.
func (s *Session) Close() error {
	s.closed = true
	s.tr.CloseIdleConnections()
	return nil
}

type envelope struct {
	Data *struct {
		Feedbacks []map[string]any `json:"feedbacks"`
	} `json:"data"`
	Error     bool   `json:"error"`
	ErrorText string `json:"errorText"`
}

// Feedbacks returns raw feedback records for productID created since the given time.
// Any failure is logged and reported as an empty result, so callers cannot tell
// "no feedback" from "fetch failed".
func (s *Session) Feedbacks(ctx context.Context, productID int64, since time.Time) []map[string]any {
	out, err := s.fetch(ctx, productID, since)
	if err != nil {
		log.Error().Err(err).Int64("nm_id", productID).Msg("fetch feedbacks failed")
		return []map[string]any{}
	}
	return out
}

func (s *Session) fetch(ctx context.Context, productID int64, since time.Time) ([]map[string]any, error) {
	if s.closed {
		return nil, errSessionClosed
	}
	u, err := feedbacksURL(s.c.base, productID, since)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := s.get(ctx, u, &env); err != nil {
		return nil, err
	}
	if env.Error {
		return nil, fmt.Errorf("wildberries: api error: %s", env.ErrorText)
	}
	if env.Data == nil || env.Data.Feedbacks == nil {
		return []map[string]any{}, nil
	}
	return env.Data.Feedbacks, nil
}

func feedbacksURL(base string, productID int64, since time.Time) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("wildberries: bad base url: %w", err)
	}
	q := u.Query()
	q.Set("nmId", strconv.FormatInt(productID, 10))
	q.Set("take", strconv.Itoa(PageSize))
	q.Set("skip", "0")
	q.Set("dateFrom", FormatDateFrom(since))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FormatDateFrom renders t as an ISO-8601 UTC timestamp with a literal Z suffix.
func FormatDateFrom(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + "Z"
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on network errors, 429 and transient 5xx, honoring Retry-After when provided.
func (s *Session) get(ctx context.Context, url string, out any) error {
	if err := s.c.rl.Wait(ctx); err != nil {
		return err
	}

	attempts := s.c.maxRetries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")
		if s.c.token != "" {
			req.Header.Set("Authorization", s.c.token)
		}

		start := time.Now()
		resp, err := s.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(service, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < attempts-1 && sleepCtx(ctx, s.backoff(i)) {
				log.Warn().Err(err).Int("attempt", i+1).Msg("feedbacks request failed, retrying")
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal(service, endpoint, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("wildberries: decode payload: %w", err)
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if wait == 0 {
				wait = s.backoff(i)
			}
			lastErr = fmt.Errorf("wildberries: remote %d", resp.StatusCode)
			if i < attempts-1 && sleepCtx(ctx, wait) {
				log.Warn().Int("status", resp.StatusCode).Int("attempt", i+1).Msg("feedbacks request failed, retrying")
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			// read a small error body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("wildberries: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles the configured retry delay per attempt and adds up to +50% jitter.
func (s *Session) backoff(i int) time.Duration {
	base := time.Duration(1<<i) * s.c.retryDelay
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}

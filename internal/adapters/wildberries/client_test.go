package wildberries_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"wb_reviews/internal/adapters/wildberries"
)

func newClient(url string, retries int) *wildberries.Client {
	return wildberries.New(url, 2*time.Second,
		wildberries.WithRetry(retries, time.Millisecond),
		wildberries.WithRateLimit(100), // high RPS for tests
	)
}

func TestSession_Feedbacks_RequestShapeAndPayload(t *testing.T) {
	since := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("nmId") != "123" || q.Get("take") != "5000" || q.Get("skip") != "0" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("dateFrom") != "2024-01-01T10:00:00Z" {
			t.Errorf("unexpected dateFrom: %q", q.Get("dateFrom"))
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing accept header")
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "Mozilla/5.0") {
			t.Errorf("unexpected user agent %q", ua)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"feedbacks": []any{
				map[string]any{"id": "abc", "nmId": 123, "productValuation": 2},
				map[string]any{"id": "def", "nmId": 123, "productValuation": 5},
			}},
		})
	}))
	defer ts.Close()

	sess := newClient(ts.URL, 0).Session()
	defer sess.Close()

	got := sess.Feedbacks(context.Background(), 123, since)
	if len(got) != 2 || got[0]["id"] != "abc" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestSession_Feedbacks_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(http.StatusBadGateway)
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"feedbacks": []any{map[string]any{"id": "x"}}},
			})
		}
	}))
	defer ts.Close()

	sess := newClient(ts.URL, 3).Session()
	defer sess.Close()

	got := sess.Feedbacks(context.Background(), 1, time.Now())
	if len(got) != 1 {
		t.Fatalf("expected one record after retries, got %+v", got)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected 3 calls, got %d", hits)
	}
}

func TestSession_Feedbacks_FailSoft(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"not found": func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"malformed json": func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("{not json")) },
		"api error flag": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":null,"error":true,"errorText":"bad token"}`))
		},
	}
	for name, h := range cases {
		ts := httptest.NewServer(h)
		sess := newClient(ts.URL, 1).Session()
		got := sess.Feedbacks(context.Background(), 1, time.Now())
		_ = sess.Close()
		ts.Close()
		if got == nil || len(got) != 0 {
			t.Fatalf("%s: expected empty non-nil result, got %+v", name, got)
		}
	}
}

func TestSession_Feedbacks_NoRetryOnClientError(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	sess := newClient(ts.URL, 3).Session()
	defer sess.Close()
	_ = sess.Feedbacks(context.Background(), 1, time.Now())
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", hits)
	}
}

func TestSession_Feedbacks_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close() // nothing listens any more

	sess := newClient(url, 1).Session()
	defer sess.Close()
	if got := sess.Feedbacks(context.Background(), 1, time.Now()); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestSession_ClosedSessionReturnsEmpty(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	sess := newClient(ts.URL, 0).Session()
	_ = sess.Close()
	if got := sess.Feedbacks(context.Background(), 1, time.Now()); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
	if hits != 0 {
		t.Fatalf("closed session must not hit the network")
	}
}

func TestFormatDateFrom(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	got := wildberries.FormatDateFrom(time.Date(2024, 5, 2, 3, 4, 5, 999, loc))
	if got != "2024-05-02T00:04:05Z" {
		t.Fatalf("got %q", got)
	}
}

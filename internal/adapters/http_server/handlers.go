// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"wb_reviews/internal/domain"
)

type ReviewQuerier interface {
	ListBadReviews(ctx context.Context, productID *int64) ([]domain.Review, error)
}

type Handlers struct{ Q ReviewQuerier }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type badReviewsResponse struct {
	ProductID *int64          `json:"nm_id,omitempty"`
	Count     int             `json:"count"`
	Items     []domain.Review `json:"items"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/bad-reviews", h.listAll)
	s.mux.Get("/v1/products/{id}/bad-reviews", h.listForProduct)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func (h *Handlers) listAll(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, nil)
}

func (h *Handlers) listForProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive integer")
		return
	}
	h.respond(w, r, &id)
}

func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, productID *int64) {
	items, err := h.Q.ListBadReviews(r.Context(), productID)
	if err != nil {
		log.Error().Err(err).Msg("list bad reviews failed")
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", "reviews store unavailable")
		return
	}
	if items == nil {
		items = []domain.Review{}
	}

	etag, body := calcETagAndBody(badReviewsResponse{ProductID: productID, Count: len(items), Items: items})
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write bad reviews body")
	}
}

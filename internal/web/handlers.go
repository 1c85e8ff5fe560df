package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/reviewgallery/internal/core"
)

// rejectShop answers a request that carries no valid shop in the shape its
// route uses.
func (s *Server) rejectShop(w http.ResponseWriter, r *http.Request, err error) {
	if r.Method == http.MethodGet {
		respondError(w, r, err)
		return
	}
	respondAction(w, r, "", err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		logError(r, core.NewUserError(err), http.StatusServiceUnavailable)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.Settings(r.Context(), shopOf(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ProductsPage(r.Context(), shopOf(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.PendingPage(r.Context(), shopOf(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handlePendingCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.PendingCount(r.Context(), shopOf(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// handleStorefrontReview accepts the storefront write-review form as JSON.
func (s *Server) handleStorefrontReview(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		writeJSON(w, http.StatusUnsupportedMediaType, actionResponse{Error: "Expected a JSON body."})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	var sub core.ReviewSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		respondAction(w, r, "", fmt.Errorf("%w: %v", core.ErrInvalidSubmission, err))
		return
	}

	err := s.service.SubmitReview(r.Context(), shopOf(r), sub)
	respondAction(w, r, core.ToastReviewSubmitted, err)
}

package web

import (
	"fmt"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/reviewgallery/internal/core"
	"github.com/JonMunkholm/reviewgallery/internal/logging"
	"github.com/JonMunkholm/reviewgallery/internal/store"
)

// shopOf returns the shop set by the ShopDomain middleware.
func shopOf(r *http.Request) string {
	return logging.ShopFromContext(r.Context())
}

// clientIP strips the port from r.RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// parseForm reads url-encoded and multipart bodies, capped at maxFormBytes.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(maxFormBytes)
	}
	return r.ParseForm()
}

// formValue returns the first non-empty of the named fields, trimmed.
func formValue(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(r.PostFormValue(name)); v != "" {
			return v
		}
	}
	return ""
}

// formBool accepts the values browsers and the admin UI send for a checked
// box.
func formBool(r *http.Request, name string) bool {
	switch strings.ToLower(formValue(r, name)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// ratingFields parses ratingSource, rating and reviewCount. Empty numbers
// are zero.
func ratingFields(r *http.Request) (store.RatingSource, float64, int, error) {
	source := store.ParseRatingSource(formValue(r, "ratingSource"))

	var rating float64
	if v := formValue(r, "rating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return source, 0, 0, fmt.Errorf("%w: rating %q", core.ErrInvalidRating, v)
		}
		rating = f
	}

	var count int
	if v := formValue(r, "reviewCount"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return source, 0, 0, fmt.Errorf("%w: review count %q", core.ErrInvalidRating, v)
		}
		count = n
	}
	return source, rating, count, nil
}

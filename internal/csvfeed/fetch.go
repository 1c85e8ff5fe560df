package csvfeed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/JonMunkholm/reviewgallery/internal/config"
)

// ErrTooLarge is returned when a CSV exceeds the configured size limit.
var ErrTooLarge = errors.New("csv exceeds size limit")

// StatusError is returned for a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
}

// CacheBust appends t=<unix ms> so published sheets are not served stale.
func CacheBust(rawURL string, t time.Time) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "t=" + strconv.FormatInt(t.UnixMilli(), 10)
}

// Fetcher downloads review CSVs over HTTP.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
	now       func() time.Time
}

// NewFetcher builds a Fetcher from cfg. A nil client uses one with
// cfg.Timeout.
func NewFetcher(cfg config.FetchConfig, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{
		client:    client,
		maxBytes:  cfg.MaxBytes,
		userAgent: cfg.UserAgent,
		now:       time.Now,
	}
}

// Fetch returns the decoded body of the CSV at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, CacheBust(rawURL, f.now()), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	if f.maxBytes > 0 && int64(len(raw)) > f.maxBytes {
		return "", fmt.Errorf("fetch %s: %w (%d bytes)", rawURL, ErrTooLarge, f.maxBytes)
	}

	return decode(raw, resp.Header.Get("Content-Type")), nil
}

// decode converts body to text. A charset named in contentType is honored
// when x/net knows it; otherwise the body is UTF-8 and invalid bytes become
// U+FFFD. The body itself is never sniffed.
func decode(body []byte, contentType string) string {
	if label := charsetParam(contentType); label != "" && !strings.EqualFold(label, "utf-8") {
		if r, err := charset.NewReaderLabel(label, bytes.NewReader(body)); err == nil {
			if data, err := io.ReadAll(r); err == nil {
				body = data
			}
		}
	}
	text := strings.ToValidUTF8(string(body), "\uFFFD")
	return strings.TrimPrefix(text, "\uFEFF")
}

func charsetParam(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}

// Rows fetches and parses the CSV at rawURL.
func (f *Fetcher) Rows(ctx context.Context, rawURL string) ([]DataRow, error) {
	text, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return Parse(text), nil
}

package core

import (
	"errors"
	"fmt"
)

// Validation errors. These are returned before any network or storage call.
var (
	ErrMissingShop       = errors.New("missing shop")
	ErrMissingProductCSV = errors.New("product and csv url required")
	ErrMissingCSVURL     = errors.New("csv url required for automatic rating")
	ErrNoSubmitEndpoint  = errors.New("no submit endpoint configured")
	ErrInvalidRating     = errors.New("invalid rating")
	ErrInvalidSubmission = errors.New("invalid review submission")
	ErrUnknownAction     = errors.New("unknown action")
)

// Lookup errors.
var (
	ErrReviewNotFound  = errors.New("pending review not found")
	ErrMappingNotFound = errors.New("product csv not found")
)

// Sync admission errors.
var (
	ErrSyncInProgress = errors.New("sync already running for shop")
	ErrTooManySyncs   = errors.New("too many concurrent syncs")
)

// ErrMirrorDisabled is returned by the no-op mirror for reads that need the
// Admin API.
var ErrMirrorDisabled = errors.New("shopify admin api not configured")

var validationErrors = []error{
	ErrMissingShop, ErrMissingProductCSV, ErrMissingCSVURL, ErrNoSubmitEndpoint,
	ErrInvalidRating, ErrInvalidSubmission, ErrUnknownAction,
}

// IsValidation reports whether err was rejected before doing any I/O.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err names a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrReviewNotFound) || errors.Is(err, ErrMappingNotFound)
}

// FieldErrors maps a submission field to the problem with it.
type FieldErrors map[string]string

// SubmissionError lists every invalid field of a storefront submission.
type SubmissionError struct {
	Fields FieldErrors
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("invalid review submission: %d field(s)", len(e.Fields))
}

func (e *SubmissionError) Unwrap() error { return ErrInvalidSubmission }

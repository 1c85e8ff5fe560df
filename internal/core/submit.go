package core

import (
	"context"
	"regexp"
	"strings"

	"github.com/JonMunkholm/reviewgallery/internal/logging"
	"github.com/JonMunkholm/reviewgallery/internal/sheetscript"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ReviewSubmission is a review written on the storefront.
type ReviewSubmission struct {
	ProductID     string `json:"productId"`
	ProductHandle string `json:"product"`
	Rating        int    `json:"rating"`
	Author        string `json:"author"`
	Email         string `json:"email"`
	Body          string `json:"body"`
}

// Validate returns a *SubmissionError naming every invalid field.
func (r ReviewSubmission) Validate() error {
	fields := FieldErrors{}
	if strings.TrimSpace(r.Author) == "" {
		fields["author"] = "Name is required."
	}
	if strings.TrimSpace(r.Body) == "" {
		fields["body"] = "Review text is required."
	}
	if r.Rating < 1 || r.Rating > 5 {
		fields["rating"] = "Please select a rating."
	}
	if email := strings.TrimSpace(r.Email); email != "" && !emailPattern.MatchString(email) {
		fields["email"] = "Enter a valid email."
	}
	if len(fields) > 0 {
		return &SubmissionError{Fields: fields}
	}
	return nil
}

// SubmitReview forwards a storefront review to the shop's Apps Script as an
// unverified sheet row. It shows up in the queue after the next sync.
func (s *Service) SubmitReview(ctx context.Context, shop string, r ReviewSubmission) error {
	if shop == "" {
		return ErrMissingShop
	}
	if err := r.Validate(); err != nil {
		return err
	}

	endpoint, err := s.SubmitEndpoint(ctx, shop, strings.TrimSpace(r.ProductID))
	if err != nil {
		return err
	}
	if endpoint == "" {
		return ErrNoSubmitEndpoint
	}

	err = s.script.Submit(ctx, endpoint, sheetscript.Submission{
		Rating:   r.Rating,
		Author:   strings.TrimSpace(r.Author),
		Email:    strings.TrimSpace(r.Email),
		Body:     strings.TrimSpace(r.Body),
		Date:     s.now().UTC().Format("2006-01-02"),
		Product:  strings.TrimSpace(r.ProductHandle),
		Verified: false,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("review submission failed", "product", r.ProductHandle, "error", err)
		return err
	}

	logging.FromContext(ctx).Info("review submitted", "product", r.ProductHandle, "rating", r.Rating)
	return nil
}

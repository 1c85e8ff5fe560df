package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/reviewgallery/internal/logging"
	"github.com/JonMunkholm/reviewgallery/internal/sheetscript"
	"github.com/JonMunkholm/reviewgallery/internal/store"
)

// SubmitEndpoint returns the Apps Script URL for productID: the mapping's
// override, else the shop's form submit URL, else "".
func (s *Service) SubmitEndpoint(ctx context.Context, shop, productID string) (string, error) {
	m, err := s.store.Mapping(ctx, shop, productID)
	if err != nil {
		return "", err
	}
	if m != nil && m.SubmitURL != "" {
		return m.SubmitURL, nil
	}
	setting, err := s.store.Setting(ctx, shop)
	if err != nil {
		return "", err
	}
	if setting != nil {
		return setting.FormSubmitURL, nil
	}
	return "", nil
}

// VerifyReview marks the sheet row verified and removes it from the queue.
// The entry is kept if the script fails.
func (s *Service) VerifyReview(ctx context.Context, shop, reviewID string) error {
	return s.triage(ctx, shop, reviewID, sheetscript.ActionVerify)
}

// DeleteReview deletes the sheet row and removes it from the queue.
// The entry is kept if the script fails.
func (s *Service) DeleteReview(ctx context.Context, shop, reviewID string) error {
	return s.triage(ctx, shop, reviewID, sheetscript.ActionDelete)
}

// DismissReview removes a review from the queue without touching the sheet.
// Dismissing a review that is already gone succeeds. The row is queued
// again by the next sync while it stays unverified in the sheet.
func (s *Service) DismissReview(ctx context.Context, shop, reviewID string) error {
	if shop == "" {
		return ErrMissingShop
	}
	removed, err := s.store.DeletePending(ctx, shop, reviewID)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("review dismissed", "review_id", reviewID, "removed", removed)
	return nil
}

func (s *Service) triage(ctx context.Context, shop, reviewID, action string) error {
	if shop == "" {
		return ErrMissingShop
	}
	review, err := s.lookupPending(ctx, shop, reviewID)
	if err != nil {
		return err
	}

	endpoint, err := s.SubmitEndpoint(ctx, shop, review.ProductID)
	if err != nil {
		return err
	}
	if endpoint == "" {
		return ErrNoSubmitEndpoint
	}

	log := logging.WithFields(ctx, "review_id", review.ID, "row_index", review.RowIndex, "action", action)
	if err := s.script.Triage(ctx, endpoint, action, review.RowIndex); err != nil {
		log.Warn("apps script triage failed", "error", err)
		return err
	}

	if _, err := s.store.DeletePending(ctx, shop, review.ID); err != nil {
		return err
	}
	log.Info("review triaged")
	return nil
}

func (s *Service) lookupPending(ctx context.Context, shop, reviewID string) (*store.PendingReview, error) {
	review, err := s.store.PendingReview(ctx, shop, reviewID)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, fmt.Errorf("%w: %s", ErrReviewNotFound, reviewID)
	}
	return review, nil
}

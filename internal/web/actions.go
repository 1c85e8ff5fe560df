package web

import (
	"net/http"

	"github.com/JonMunkholm/reviewgallery/internal/core"
)

// Admin form intents.
const (
	intentSaveSettings     = "save_settings"
	intentSaveProductCSV   = "save_product_csv"
	intentDeleteProductCSV = "delete_product_csv"
	intentSyncPending      = "sync_pending"
	intentVerifyReview     = "verify_review"
	intentDeleteReview     = "delete_review"
	intentDismissReview    = "dismiss_review"
)

type actionFunc func(s *Server, r *http.Request, shop string) (toast string, err error)

var actions = map[string]actionFunc{
	intentSaveSettings:     (*Server).saveSettings,
	intentSaveProductCSV:   (*Server).saveProductCSV,
	intentDeleteProductCSV: (*Server).deleteProductCSV,
	intentVerifyReview:     (*Server).verifyReview,
	intentDeleteReview:     (*Server).deleteReview,
	intentDismissReview:    (*Server).dismissReview,
}

// handleAction dispatches an admin form post on its intent field.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		respondAction(w, r, "", err)
		return
	}
	shop := shopOf(r)
	intent := formValue(r, "intent")

	// Sync also returns its per-source breakdown.
	if intent == intentSyncPending {
		res, err := s.service.SyncPending(r.Context(), shop)
		if err != nil {
			respondAction(w, r, "", err)
			return
		}
		writeJSON(w, http.StatusOK, actionResponse{Success: true, Toast: res.Toast(), Sync: &res})
		return
	}

	fn, ok := actions[intent]
	if !ok {
		respondAction(w, r, "", core.ErrUnknownAction)
		return
	}
	toast, err := fn(s, r, shop)
	respondAction(w, r, toast, err)
}

func (s *Server) saveSettings(r *http.Request, shop string) (string, error) {
	source, rating, count, err := ratingFields(r)
	if err != nil {
		return "", err
	}
	_, err = s.service.SaveSettings(r.Context(), shop, core.SettingsInput{
		CsvURL:            formValue(r, "csvUrl"),
		Heading:           formValue(r, "heading"),
		StarColor:         formValue(r, "starColor"),
		LayoutStyle:       formValue(r, "layoutStyle"),
		ShowVerifiedBadge: formBool(r, "showVerifiedBadge"),
		RatingSource:      source,
		Rating:            rating,
		ReviewCount:       count,
		FormSubmitURL:     formValue(r, "formSubmitUrl"),
	})
	return core.ToastSettingsSaved, err
}

func (s *Server) saveProductCSV(r *http.Request, shop string) (string, error) {
	source, rating, count, err := ratingFields(r)
	if err != nil {
		return "", err
	}
	_, err = s.service.SaveProductCSV(r.Context(), shop, core.ProductCSVInput{
		ProductID:    formValue(r, "productId"),
		ProductTitle: formValue(r, "productTitle"),
		ProductImage: formValue(r, "productImage"),
		CsvURL:       formValue(r, "productCsvUrl", "csvUrl"),
		RatingSource: source,
		Rating:       rating,
		ReviewCount:  count,
		SubmitURL:    formValue(r, "submitUrl"),
	})
	return core.ToastProductSaved, err
}

func (s *Server) deleteProductCSV(r *http.Request, shop string) (string, error) {
	return core.ToastProductRemoved, s.service.DeleteProductCSV(r.Context(), shop, formValue(r, "productId"))
}

// The form also posts the submitUrl it rendered; the endpoint is resolved
// again from storage instead.
func (s *Server) verifyReview(r *http.Request, shop string) (string, error) {
	return core.ToastReviewVerified, s.service.VerifyReview(r.Context(), shop, formValue(r, "reviewId"))
}

func (s *Server) deleteReview(r *http.Request, shop string) (string, error) {
	return core.ToastReviewDeleted, s.service.DeleteReview(r.Context(), shop, formValue(r, "reviewId"))
}

func (s *Server) dismissReview(r *http.Request, shop string) (string, error) {
	return core.ToastReviewDismissed, s.service.DismissReview(r.Context(), shop, formValue(r, "reviewId"))
}

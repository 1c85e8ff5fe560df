package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical text and the request ID, then
// sent to the client as the merchant-facing message from core.MapError.
// Admin form posts get the action shape {success:false, error}; the read
// APIs get ErrorResponse.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/reviewgallery/internal/core"
	"github.com/JonMunkholm/reviewgallery/internal/csvfeed"
	"github.com/JonMunkholm/reviewgallery/internal/logging"
	"github.com/JonMunkholm/reviewgallery/internal/sheetscript"
	"github.com/JonMunkholm/reviewgallery/internal/shopify"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// actionResponse is the reply to every admin form post.
type actionResponse struct {
	Success bool             `json:"success"`
	Toast   string           `json:"toast,omitempty"`
	Error   string           `json:"error,omitempty"`
	Code    string           `json:"code,omitempty"`
	Fields  core.FieldErrors `json:"fields,omitempty"`
	Sync    *core.SyncResult `json:"sync,omitempty"`
}

// statusFor picks the HTTP status of err.
func statusFor(err error) int {
	var (
		upstreamStatus *csvfeed.StatusError
		tooLarge       *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case core.IsValidation(err):
		return http.StatusBadRequest
	case core.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManySyncs):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrMirrorDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, sheetscript.ErrScriptRejected),
		errors.Is(err, sheetscript.ErrUnreachable),
		errors.Is(err, shopify.ErrUnauthorized),
		errors.Is(err, csvfeed.ErrTooLarge),
		errors.As(err, &upstreamStatus),
		isShopifyError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isShopifyError(err error) bool {
	var gqlErr *shopify.GraphQLError
	var userErrs shopify.UserErrors
	return errors.As(err, &gqlErr) || errors.As(err, &userErrs)
}

// logError records the technical error behind ue with request context.
// Server failures and errors without a specific message are logged at
// error level so they stand out from routine rejections.
func logError(r *http.Request, ue *core.UserError, status int) {
	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Technical.Error(),
		"code", ue.User.Code,
	}
	if status >= http.StatusInternalServerError || !core.IsUserFacing(ue.Technical) {
		log.Error("request error", args...)
		return
	}
	log.Warn("request error", args...)
}

// respondError writes an ErrorResponse for a read API.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ue := core.NewUserError(err)
	logError(r, ue, status)
	msg := ue.User

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondAction writes the reply to an admin form post. A nil err is a
// success with the given toast.
func respondAction(w http.ResponseWriter, r *http.Request, toast string, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, actionResponse{Success: true, Toast: toast})
		return
	}

	status := statusFor(err)
	ue := core.NewUserError(err)
	logError(r, ue, status)

	resp := actionResponse{Success: false, Error: ue.User.Message, Code: ue.User.Code}
	var se *core.SubmissionError
	if errors.As(err, &se) {
		resp.Fields = se.Fields
	}
	writeJSON(w, status, resp)
}

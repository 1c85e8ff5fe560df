package core

// error_messages.go maps technical errors to messages shown in admin toasts.
//
// # Error Codes Reference
//
// Merchants can quote the code to support for faster diagnosis.
//
// # Validation (VAL001-VAL099)
//
//	VAL001 - Product and CSV URL are required.
//	VAL002 - No Apps Script URL configured for this product.
//	VAL005 - Rating must be between 0 and 5.
//	VAL006 - A CSV URL is needed to compute the rating automatically.
//	VAL007 - The review form has errors.
//	VAL008 - Unknown action.
//	VAL009 - Shop domain missing.
//
// # Lookups (NF001-NF099)
//
//	NF001 - Review is no longer pending
//	NF002 - Product has no CSV attached
//
// # Apps Script (SCR001-SCR099)
//
//	SCR001 - Script replied {success:false}; message is the script's own
//	SCR002 - Script could not be reached or replied garbage
//
// # Shopify (SHOP001-SHOP099)
//
//	SHOP001 - metafieldsSet/metafieldsDelete userErrors
//	SHOP002 - Access token rejected
//	SHOP003 - Other GraphQL errors
//	SHOP004 - Admin API not configured
//
// # CSV (CSV001-CSV099)
//
//	CSV001 - CSV download returned a non-2xx status
//	CSV002 - CSV exceeds the size limit
//
// # Database (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB004 - Connection refused
//	DB005 - Connection reset or terminated
//	DB006 - Timeout
//	DB007 - Deadlock
//
// # Throttling (RATE001-RATE099)
//
//	RATE001 - Too many requests
//	RATE002 - Sync already running for the shop
//	RATE003 - Sync slots exhausted
//
// # Default Error (ERR000)

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/reviewgallery/internal/csvfeed"
	"github.com/JonMunkholm/reviewgallery/internal/sheetscript"
	"github.com/JonMunkholm/reviewgallery/internal/shopify"
)

// UserMessage is an error translated for the merchant.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

// sentinelMessages are checked with errors.Is before any text matching.
var sentinelMessages = []sentinelMessage{
	{ErrMissingProductCSV, UserMessage{"Product and CSV URL are required.", "Pick a product and paste its published CSV link", "VAL001"}},
	{ErrNoSubmitEndpoint, UserMessage{"No Apps Script URL configured for this product.", "Add a submit URL to the product or the global settings", "VAL002"}},
	{ErrInvalidRating, UserMessage{"Rating must be between 0 and 5 and the review count cannot be negative.", "Correct the rating fields", "VAL005"}},
	{ErrMissingCSVURL, UserMessage{"A CSV URL is needed to compute the rating automatically.", "Add the CSV URL or switch to a manual rating", "VAL006"}},
	{ErrInvalidSubmission, UserMessage{"Please correct the highlighted fields.", "Fill in your name, review and rating", "VAL007"}},
	{ErrUnknownAction, UserMessage{"Unknown action.", "Reload the page and try again", "VAL008"}},
	{ErrMissingShop, UserMessage{"Shop domain is missing.", "Open the app from your Shopify admin", "VAL009"}},
	{ErrReviewNotFound, UserMessage{"This review is no longer pending.", "Reload the pending list", "NF001"}},
	{ErrMappingNotFound, UserMessage{"No CSV is attached to this product.", "Reload the product list", "NF002"}},
	{ErrMirrorDisabled, UserMessage{"The Shopify Admin API is not configured.", "Set SHOPIFY_ADMIN_TOKEN to enable product sync", "SHOP004"}},
	{ErrSyncInProgress, UserMessage{"A sync is already running for this shop.", "Wait for it to finish, then reload", "RATE002"}},
	{ErrTooManySyncs, UserMessage{"Too many syncs are running right now.", "Please try again in a minute", "RATE003"}},
	{shopify.ErrUnauthorized, UserMessage{"Shopify denied access to the Admin API.", "Reinstall the app to refresh its permissions", "SHOP002"}},
	{csvfeed.ErrTooLarge, UserMessage{"The review CSV is too large.", "Split the sheet or raise CSV_MAX_BYTES", "CSV002"}},
}

type errorPattern struct {
	patterns []string
	msg      UserMessage
}

// errorPatterns are matched case-insensitively against the error text, in
// order. More specific patterns come first.
var errorPatterns = []errorPattern{
	{[]string{"duplicate key", "unique constraint", "duplicate entry"},
		UserMessage{"A record with this ID already exists", "Reload the page and try again", "DB001"}},
	{[]string{"connection refused", "can't reach database server"},
		UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{[]string{"connection reset", "connection terminated", "invalid connection", "bad connection"},
		UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{[]string{"deadlock"},
		UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{[]string{"context deadline exceeded"},
		UserMessage{"The request took too long", "Try again; a sync with many products can take a minute", "DB006"}},
	{[]string{"timeout"},
		UserMessage{"Operation timed out", "Please try again later", "DB006"}},
	{[]string{"rate limit"},
		UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned for unrecognized errors.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError translates a technical error into a UserMessage.
//
// Sentinel errors are matched with errors.Is first. Errors from the Apps
// Script and Shopify clients keep their own text, since it is what the
// merchant needs to fix their script or permissions. Remaining errors are
// matched against errorPatterns. Returns the zero UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	var remote *sheetscript.RemoteError
	if errors.As(err, &remote) {
		return UserMessage{Message: remote.Error(), Action: "Check the sheet and the Apps Script deployment", Code: "SCR001"}
	}
	var transport *sheetscript.TransportError
	if errors.As(err, &transport) {
		return UserMessage{Message: transport.Error(), Action: "Check the Apps Script URL and that it is deployed for anyone", Code: "SCR002"}
	}

	var userErrs shopify.UserErrors
	if errors.As(err, &userErrs) {
		msg := "Metafield save failed."
		if len(userErrs) > 0 && userErrs[0].Message != "" {
			msg = userErrs[0].Message
		}
		return UserMessage{Message: msg, Action: "Check the values and save again", Code: "SHOP001"}
	}
	var gqlErr *shopify.GraphQLError
	if errors.As(err, &gqlErr) {
		return UserMessage{Message: "Shopify Admin API returned an error", Action: "Please try again; check app permissions if it persists", Code: "SHOP003"}
	}

	var statusErr *csvfeed.StatusError
	if errors.As(err, &statusErr) {
		return UserMessage{
			Message: fmt.Sprintf("The review CSV could not be downloaded (HTTP %d)", statusErr.Code),
			Action:  "Make sure the sheet is published to the web as CSV",
			Code:    "CSV001",
		}
	}

	text := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		for _, p := range ep.patterns {
			if strings.Contains(text, p) {
				return ep.msg
			}
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err and keeps it for logging via Unwrap.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

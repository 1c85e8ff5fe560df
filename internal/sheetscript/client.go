// Package sheetscript calls the Google Apps Script web app a merchant
// deploys next to their review sheet. The script verifies or deletes sheet
// rows and appends storefront submissions.
package sheetscript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/reviewgallery/internal/config"
)

// Triage actions understood by the script.
const (
	ActionVerify = "verify"
	ActionDelete = "delete"
)

// ErrScriptRejected is wrapped by errors the script itself reported.
var ErrScriptRejected = errors.New("apps script rejected the request")

// ErrUnreachable is wrapped by transport and decoding failures.
var ErrUnreachable = errors.New("apps script unreachable")

// RemoteError is a {success:false} reply.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "Apps Script returned an error."
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error { return ErrScriptRejected }

// TransportError wraps a failure to get a usable reply.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "Failed to reach Apps Script: " + e.Err.Error()
}

func (e *TransportError) Unwrap() []error { return []error{ErrUnreachable, e.Err} }

// Submission is a storefront review forwarded to the sheet.
// Verified is always false; the merchant approves rows in the sheet.
type Submission struct {
	Rating   int    `json:"rating"`
	Author   string `json:"author"`
	Email    string `json:"email"`
	Body     string `json:"body"`
	Date     string `json:"date"`
	Product  string `json:"product"`
	Verified bool   `json:"verified"`
}

type triageRequest struct {
	Action   string `json:"action"`
	RowIndex int    `json:"rowIndex"`
}

type reply struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Client posts to Apps Script endpoints. The endpoint is passed per call
// because each shop and product may use its own deployment.
type Client struct {
	http *http.Client
}

// New returns a Client. A nil hc uses one with cfg.Timeout.
func New(cfg config.ScriptConfig, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{http: hc}
}

// Triage asks the script to verify or delete the sheet row at rowIndex.
// Any reply other than {success:true} is an error.
func (c *Client) Triage(ctx context.Context, endpoint, action string, rowIndex int) error {
	var r reply
	if err := c.post(ctx, endpoint, "application/json", triageRequest{Action: action, RowIndex: rowIndex}, &r); err != nil {
		return err
	}
	if !r.Success {
		return &RemoteError{Message: r.Error}
	}
	return nil
}

// Submit appends a storefront review to the sheet. Scripts deployed for the
// storefront form often reply with a redirect page instead of JSON, so only
// an explicit {success:false} counts as rejection.
func (c *Client) Submit(ctx context.Context, endpoint string, s Submission) error {
	s.Verified = false
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	body, err := c.do(ctx, endpoint, "text/plain;charset=utf-8", payload)
	if err != nil {
		return err
	}
	var r reply
	if json.Unmarshal(body, &r) == nil && !r.Success && r.Error != "" {
		return &RemoteError{Message: r.Error}
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	body, err := c.do(ctx, endpoint, contentType, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Err: fmt.Errorf("invalid JSON reply: %w", err)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, contentType string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return body, nil
}

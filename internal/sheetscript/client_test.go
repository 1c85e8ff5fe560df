package sheetscript

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/reviewgallery/internal/config"
)

func newClient() *Client {
	return New(config.ScriptConfig{Timeout: 5 * time.Second}, nil)
}

func TestTriage_Success(t *testing.T) {
	var got triageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	require.NoError(t, newClient().Triage(context.Background(), srv.URL, ActionVerify, 3))
	assert.Equal(t, triageRequest{Action: "verify", RowIndex: 3}, got)
}

func TestTriage_RemoteFailure(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"with message", `{"success":false,"error":"Row not found"}`, "Row not found"},
		{"without message", `{"success":false}`, "Apps Script returned an error."},
		{"missing success", `{}`, "Apps Script returned an error."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := newClient().Triage(context.Background(), srv.URL, ActionDelete, 2)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrScriptRejected)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestTriage_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := newClient().Triage(context.Background(), url, ActionVerify, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, err.Error(), "Failed to reach Apps Script: ")
}

func TestTriage_NonJSONReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>moved</html>"))
	}))
	defer srv.Close()

	err := newClient().Triage(context.Background(), srv.URL, ActionVerify, 2)
	var te *TransportError
	require.True(t, errors.As(err, &te), "error = %v", err)
}

func TestSubmit_ForcesUnverified(t *testing.T) {
	var got Submission
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	err := newClient().Submit(context.Background(), srv.URL, Submission{
		Rating: 5, Author: "Sarah", Body: "Great", Date: "2024-01-15", Product: "mug", Verified: true,
	})
	require.NoError(t, err)
	assert.False(t, got.Verified)
	assert.Equal(t, "Sarah", got.Author)
	assert.Equal(t, "text/plain;charset=utf-8", contentType)
}

func TestSubmit_ExplicitRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"Sheet is full"}`))
	}))
	defer srv.Close()

	err := newClient().Submit(context.Background(), srv.URL, Submission{Rating: 4, Author: "A", Body: "B"})
	assert.ErrorIs(t, err, ErrScriptRejected)
}

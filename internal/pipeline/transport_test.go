package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

func newTestTransport(t *testing.T, url string) *HTTPTransport {
	t.Helper()
	tr, err := NewHTTPTransport(Options{
		Endpoint: url,
		Timeout:  2 * time.Second,
		Logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return tr
}

func TestNewHTTPTransportRequiresEndpoint(t *testing.T) {
	_, err := NewHTTPTransport(Options{})
	assert.Error(t, err)
}

func TestSendPostsJSON(t *testing.T) {
	var got domain.PipelineRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ACTIVE"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	resp, err := tr.Send(context.Background(), domain.PipelineRequest{Action: domain.ActionCheckImport, ID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", resp.Message)
	assert.Equal(t, domain.ActionCheckImport, got.Action)
	assert.Equal(t, "job-1", got.ID)
	assert.Empty(t, got.Data)
}

func TestSendStartCarriesData(t *testing.T) {
	var raw map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"message":"job-42"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	resp, err := tr.Send(context.Background(), domain.PipelineRequest{Action: "start", Data: "[1,2,3]"})
	require.NoError(t, err)
	assert.Equal(t, "job-42", resp.Message)
	assert.Equal(t, "start", raw["action"])
	assert.Equal(t, "[1,2,3]", raw["data"])
	_, hasID := raw["id"]
	assert.False(t, hasID)
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "error body with message",
			status:     http.StatusBadRequest,
			body:       `{"message":"Invalid data"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid data",
		},
		{
			name:       "error body without message",
			status:     http.StatusBadGateway,
			body:       `<html>bad gateway</html>`,
			wantStatus: http.StatusBadGateway,
			wantMsg:    "transport error: 502 Bad Gateway",
		},
		{
			name:       "success with undecodable body",
			status:     http.StatusOK,
			body:       `not json`,
			wantStatus: http.StatusOK,
			wantMsg:    GenericMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr := newTestTransport(t, srv.URL)
			resp, err := tr.Send(context.Background(), domain.PipelineRequest{Action: "getresult", ID: "j"})
			require.Error(t, err)
			assert.Nil(t, resp)

			var perr *Error
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.wantStatus, perr.StatusCode)
			assert.Equal(t, tt.wantMsg, perr.Message)
			assert.Equal(t, "getresult", perr.Action)
		})
	}
}

func TestSendNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr := newTestTransport(t, url)
	_, err := tr.Send(context.Background(), domain.PipelineRequest{Action: "checkimport", ID: "j"})

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 0, perr.StatusCode)
	assert.Equal(t, GenericMessage, perr.Message)
	assert.NotNil(t, perr.Unwrap())
	assert.True(t, perr.Temporary())
}

func TestSendSingleAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	_, err := tr.Send(context.Background(), domain.PipelineRequest{Action: "checkexport", ID: "j"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSendRejectsMissingAction(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	_, err := tr.Send(context.Background(), domain.PipelineRequest{})
	require.Error(t, err)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSendHonorsCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ACTIVE"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Send(ctx, domain.PipelineRequest{Action: "checkimport", ID: "j"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestErrorTemporary(t *testing.T) {
	assert.True(t, (&Error{StatusCode: 503}).Temporary())
	assert.True(t, (&Error{StatusCode: 429}).Temporary())
	assert.False(t, (&Error{StatusCode: 400}).Temporary())
	assert.Contains(t, (&Error{Action: "start", StatusCode: 400, Message: "bad"}).Error(), "status 400")
}

package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

func TestHTTPClient_GetAndPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.Header().Set("Retry-After", "3")
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("pong"))
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write(body)
		}
	}))
	defer server.Close()

	client := NewHTTPClient()
	headers := http.Header{"X-Test": []string{"yes"}}

	code, body, respHeaders, err := client.Get(context.Background(), server.URL, headers)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pong", string(body))
	assert.Equal(t, "3", respHeaders.Get("Retry-After"))

	code, body, _, err = client.Post(context.Background(), server.URL, headers, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, code)
	assert.JSONEq(t, `{"a":1}`, string(body))
}

func TestHTTPClient_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err := NewHTTPClient().Get(ctx, server.URL, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPClient_SetClient(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockHTTPClientI(ctrl)
	mock.EXPECT().Post(gomock.Any(), "http://example", nil, []byte("x")).Return(http.StatusTooManyRequests, nil, http.Header{}, nil)

	client := NewHTTPClient()
	client.SetClient(mock)
	code, _, _, err := client.Post(context.Background(), "http://example", nil, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(maxRetry time.Duration) *Client {
	return NewClient(ClientOptions{
		Timeout:         2 * time.Second,
		RequestsPerSec:  1000,
		MaxRetryTimeout: maxRetry,
	})
}

func TestGetJSONDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"value":42}`))
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	err := testClient(time.Second).GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
}

func TestServerErrorsRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var out struct{}
	err := testClient(10 * time.Second).GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestClientErrorsAreTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var out struct{}
	err := testClient(10 * time.Second).GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)

	var statusErr *HTTPStatusError
	assert.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must not retry")
}

func TestCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out struct{}
	err := testClient(time.Second).GetJSON(ctx, srv.URL, &out)
	assert.Error(t, err)
}

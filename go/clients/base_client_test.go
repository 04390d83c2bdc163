package clients

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyServer fails the first n requests with status and succeeds afterwards.
func flakyServer(t *testing.T, n int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= n {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("boom"))
			return
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			_, _ = w.Write(body)
			return
		}
		_, _ = w.Write([]byte(`"ok"`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestMakeRequest_RetriesServerErrors(t *testing.T) {
	srv, calls := flakyServer(t, 2, http.StatusInternalServerError)
	c := NewBaseClient(srv.URL)

	var retries []int
	c.OnRetry(func(attempt int, err error) { retries = append(retries, attempt) })

	data, err := c.Get(context.Background(), "/x")
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(data))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []int{1, 2}, retries)
}

func TestMakeRequest_GivesUpAfterMaxAttempts(t *testing.T) {
	srv, calls := flakyServer(t, 10, http.StatusServiceUnavailable)
	c := NewBaseClient(srv.URL)

	_, err := c.Get(context.Background(), "/x")
	require.Error(t, err)
	assert.Equal(t, int32(DefaultMaxAttempts), calls.Load())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestMakeRequest_ClientErrorNotRetried(t *testing.T) {
	srv, calls := flakyServer(t, 10, http.StatusBadRequest)
	c := NewBaseClient(srv.URL)

	_, err := c.Post(context.Background(), "/x", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.False(t, statusErr.Retryable())
}

func TestMakeRequest_TransportErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewBaseClient(url)
	c.SetMaxAttempts(2)
	attempts := 0
	c.OnRetry(func(int, error) { attempts++ })

	_, err := c.Get(context.Background(), "/x")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestMakeRequest_SendsBodyAndHeaders(t *testing.T) {
	var gotHeader, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Test")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c := NewBaseClient(srv.URL)
	c.SetHeader("X-Test", "yes")
	data, err := c.Post(context.Background(), "/echo", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
	assert.Equal(t, "yes", gotHeader)
	assert.Equal(t, "application/json", gotType)
}

func TestMakeRequest_CancelledContext(t *testing.T) {
	srv, calls := flakyServer(t, 10, http.StatusInternalServerError)
	c := NewBaseClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	c.OnRetry(func(int, error) { cancel() })

	_, err := c.Get(ctx, "/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

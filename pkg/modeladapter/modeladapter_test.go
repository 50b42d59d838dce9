package modeladapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	a := &ModelAdapter{
		BaseURL: srv.URL,
		Auth:    Auth{Key: "secret"},
	}

	var dest struct {
		OK bool `json:"ok"`
	}
	err := a.PostJSON(context.Background(), "/test", map[string]string{"hello": "world"}, &dest)

	require.NoError(t, err)
	assert.True(t, dest.OK)
}

func TestPostJSONNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := &ModelAdapter{BaseURL: srv.URL}

	err := a.PostJSON(context.Background(), "/test", nil, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestPostJSONRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	a := &ModelAdapter{BaseURL: srv.URL}

	err := a.PostJSON(context.Background(), "/test", nil, nil)

	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 7*time.Second, rle.RetryAfter)
	assert.Contains(t, rle.Body, "slow down")
}

func TestCustomAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-123", r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := &ModelAdapter{
		BaseURL: srv.URL,
		Auth:    Auth{Key: "key-123", Header: "X-Api-Key"},
	}

	require.NoError(t, a.PostJSON(context.Background(), "/", nil, nil))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), ParseRetryAfter(""))
	assert.Equal(t, 30*time.Second, ParseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("garbage"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	assert.Greater(t, ParseRetryAfter(future), 50*time.Second)
}

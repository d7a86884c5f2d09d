package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPProberHealthyProvider(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := NewHTTPProber(time.Second)
	result := prober.Probe(context.Background(), server.URL)

	assert.True(t, result.OK())
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Empty(t, result.Error)
}

func TestHTTPProberFallsBackToGet(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := NewHTTPProber(time.Second)
	result := prober.Probe(context.Background(), server.URL)

	assert.True(t, result.OK())
}

func TestHTTPProberServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	prober := NewHTTPProber(time.Second)
	result := prober.Probe(context.Background(), server.URL)

	assert.False(t, result.OK())
	assert.True(t, result.Reachable)
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.Contains(t, result.Error, "unexpected status 500")
}

func TestHTTPProberTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	prober := NewHTTPProber(20 * time.Millisecond)
	result := prober.Probe(context.Background(), server.URL)

	assert.False(t, result.OK())
	assert.False(t, result.Reachable)
	assert.NotEmpty(t, result.Error)
}

func TestHTTPProberUnreachableHost(t *testing.T) {
	t.Parallel()

	prober := NewHTTPProber(time.Second)
	result := prober.Probe(context.Background(), "http://127.0.0.1:1")

	assert.False(t, result.OK())
	assert.False(t, result.Reachable)
}

package fetcher

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

func TestFetchRotatesUserAgentsAcrossAttempts(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("User-Agent"))
		if len(seen) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("vless://uuid@a.com:443?encryption=none#a\n"))
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.UserAgents = []string{"ua-one", "ua-two"}
	opts.MaxRetries = 2
	opts.CacheBuster = false
	opts.Sleep = func(time.Duration) {}

	res, err := Fetch(context.Background(), srv.URL, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []string{"ua-one", "ua-one", "ua-two"}, seen)
}

func TestFetchFallsThroughToEgressProxyPastThreshold(t *testing.T) {
	var directHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&directHits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.MaxRetries = 5
	opts.UserAgents = []string{"ua"}
	opts.CacheBuster = false
	opts.EgressFallbackAfter = 1
	opts.EgressProxies = []string{"http://127.0.0.1:1"}
	opts.Sleep = func(time.Duration) {}

	_, err := Fetch(context.Background(), srv.URL, opts)
	require.Error(t, err)
	// only the first attempt reaches the server directly; every later one
	// is sent through the unreachable egress proxy and never arrives.
	assert.Equal(t, int32(1), atomic.LoadInt32(&directHits))
}

func TestValidateRejectsEmptyBody(t *testing.T) {
	ok, bestEffort := Validate([]byte("   \n"))
	assert.False(t, ok)
	assert.False(t, bestEffort)
}

func TestValidateTagsUnrecognizedBodyBestEffort(t *testing.T) {
	ok, bestEffort := Validate([]byte("<!DOCTYPE html><html><body>blocked</body></html>"))
	assert.True(t, ok)
	assert.True(t, bestEffort)
}

func TestValidateAcceptsURIList(t *testing.T) {
	ok, bestEffort := Validate([]byte("vless://uuid@a.com:443?encryption=none#a\n"))
	assert.True(t, ok)
	assert.False(t, bestEffort)
}

func TestValidateAcceptsYAMLProxiesMarker(t *testing.T) {
	ok, bestEffort := Validate([]byte("proxies:\n  - name: a\n"))
	assert.True(t, ok)
	assert.False(t, bestEffort)
}

func TestValidateAcceptsBracketedJSON(t *testing.T) {
	ok, bestEffort := Validate([]byte(`{"proxies":[]}`))
	assert.True(t, ok)
	assert.False(t, bestEffort)
}

func TestValidateAcceptsBase64EnvelopeOfKnownURI(t *testing.T) {
	ok, bestEffort := Validate([]byte("dmxlc3M6Ly91dWlkQGEuY29tOjQ0Mw=="))
	assert.True(t, ok)
	assert.False(t, bestEffort)
}

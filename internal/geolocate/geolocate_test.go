package geolocate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyson-dev/subsync/internal/node"
)

func TestLocatorFallsBackPastRateLimitedProvider(t *testing.T) {
	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer limited.Close()
	ready := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"country_code":"US","country":"United States","city":"Ashburn"}`))
	}))
	defer ready.Close()

	providers := []*Provider{
		{Name: "limited", URLTemplate: limited.URL + "/%s", RateLimitPerMinute: 1000, Parser: parseIPWhois},
		{Name: "ready", URLTemplate: ready.URL + "/%s", RateLimitPerMinute: 1000, Parser: parseIPWhois},
	}
	// round-robin starts at "limited"; its 429 puts it in cooldown and
	// Locate moves on to "ready" within the same call.
	loc := NewLocator(providers, NewCache(""), nil)
	_, err := loc.Locate(context.Background(), "1.2.3.4")
	require.NoError(t, err)

	geo, err := loc.Locate(context.Background(), "1.2.3.5")
	require.NoError(t, err)
	assert.Equal(t, "US", geo.CountryCode)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache("")
	fakeNow := time.Now()
	c.nowFunc = func() time.Time { return fakeNow }
	c.Put("9.9.9.9", node.Geo{CountryCode: "US", ResolvedAt: fakeNow.Add(-8 * 24 * time.Hour)})
	_, ok := c.Get("9.9.9.9")
	assert.False(t, ok)
}

package prober

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyson-dev/subsync/internal/node"
)

func TestProbeMarksReachableTCPUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port := mustAtoi(portStr)

	n := node.Node{Protocol: node.VMess, Server: host, Port: port}
	out := Probe(context.Background(), []node.Node{n}, DefaultOptions(), nil)
	require.Len(t, out, 1)
	assert.Equal(t, node.StatusUp, out[0].ProbeResult.Status)
}

func TestProbeDemotesHighLatencyToDown(t *testing.T) {
	// A trojan probe is a TLS handshake, and this server holds every
	// handshake back 30ms. (A plain TCP dial completes in the kernel before
	// Accept returns, so a delay after Accept would not slow it down.)
	srv := httptest.NewUnstartedServer(http.NotFoundHandler())
	srv.TLS = &tls.Config{GetConfigForClient: func(*tls.ClientHelloInfo) (*tls.Config, error) {
		time.Sleep(30 * time.Millisecond)
		return nil, nil
	}}
	srv.StartTLS()
	defer srv.Close()
	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port := mustAtoi(portStr)

	n := node.Node{Protocol: node.Trojan, Server: host, Port: port}
	opts := DefaultOptions()
	opts.HighLatencyFloor = 10 // force demotion well below the 30ms handshake delay
	out := Probe(context.Background(), []node.Node{n}, opts, nil)
	assert.Equal(t, node.StatusDown, out[0].ProbeResult.Status)
	assert.Equal(t, "latency too high", out[0].ProbeResult.Error)
}

type fakeLocator struct {
	geo node.Geo
}

func (f fakeLocator) Locate(ctx context.Context, ip string) (node.Geo, error) {
	return f.geo, nil
}

func TestProbeFlagsLocationMismatch(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port := mustAtoi(portStr)

	n := node.Node{Protocol: node.VMess, Server: host, Port: port, Geo: &node.Geo{CountryCode: "US"}}
	opts := DefaultOptions()
	opts.VerifyLocation = true
	out := Probe(context.Background(), []node.Node{n}, opts, fakeLocator{geo: node.Geo{CountryCode: "JP"}})
	require.NotNil(t, out[0].ProbeResult)
	assert.True(t, out[0].ProbeResult.LocationMismatch)
	require.NotNil(t, out[0].ProbeResult.ActualGeo)
	assert.Equal(t, "JP", out[0].ProbeResult.ActualGeo.CountryCode)
}

func TestProbeMarksUnreachableDown(t *testing.T) {
	n := node.Node{Protocol: node.VMess, Server: "127.0.0.1", Port: 1}
	opts := DefaultOptions()
	opts.Timeout = 200 * time.Millisecond
	out := Probe(context.Background(), []node.Node{n}, opts, nil)
	assert.Equal(t, node.StatusDown, out[0].ProbeResult.Status)
}

func mustAtoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

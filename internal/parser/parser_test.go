package parser

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectURIList(t *testing.T) {
	content := []byte("vless://uuid@a.com:443?encryption=none#a\nss://YWVzOnB3@b.com:1#b\n")
	assert.Equal(t, FormatURIList, Detect(content))
}

func TestDetectYAML(t *testing.T) {
	content := []byte("proxies:\n  - name: a\n    type: ss\n")
	assert.Equal(t, FormatYAML, Detect(content))
}

func TestParseBase64EnvelopeOfURIList(t *testing.T) {
	inner := "vless://11111111-2222-3333-4444-555555555555@example.com:443?encryption=none#node1\n" +
		"vless://11111111-2222-3333-4444-555555555556@example.com:444?encryption=none#node2\n"
	enc := base64.StdEncoding.EncodeToString([]byte(inner))
	nodes, err := ParseAuto([]byte(enc))
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestParseYAMLProxyProviders(t *testing.T) {
	content := []byte(`proxy-providers:
  provider1:
    type: file
    path: ./provider1.yaml
    proxies:
      - name: node-b
        type: ss
        server: 5.6.7.8
        port: 8389
        cipher: aes-256-gcm
        password: secret
`)
	nodes, err := ParseAuto(content)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "5.6.7.8", nodes[0].Server)
}

func TestParseYAMLProxies(t *testing.T) {
	content := []byte(`proxies:
  - name: node-a
    type: ss
    server: 1.2.3.4
    port: 8388
    cipher: aes-256-gcm
    password: secret
`)
	nodes, err := ParseAuto(content)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "1.2.3.4", nodes[0].Server)
}

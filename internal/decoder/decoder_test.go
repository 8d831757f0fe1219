package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyson-dev/subsync/internal/node"
)

func TestDecodeVLess(t *testing.T) {
	n, err := Decode("vless://11111111-2222-3333-4444-555555555555@example.com:443?encryption=none&security=tls&sni=example.com&type=ws&path=%2Fws#My%20Node")
	require.NoError(t, err)
	assert.Equal(t, node.VLess, n.Protocol)
	assert.Equal(t, "example.com", n.Server)
	assert.Equal(t, 443, n.Port)
	assert.Equal(t, "My Node", n.DisplayName)
	assert.True(t, n.Settings.TLS)
	assert.Equal(t, "/ws", n.Settings.WSPath)
}

func TestDecodeTrojanWithSpecialCharsInPassword(t *testing.T) {
	n, err := Decode("trojan://p@ss%23w0rd@example.com:443?sni=example.com#trojan-node")
	require.NoError(t, err)
	assert.Equal(t, "example.com", n.Server)
	assert.Equal(t, "p@ss#w0rd", n.Settings.Password)
}

func TestDecodeShadowsocksSIP002(t *testing.T) {
	// aes-256-gcm:password base64 encoded, per SIP002.
	n, err := Decode("ss://YWVzLTI1Ni1nY206cGFzc3dvcmQ=@example.com:8388#ss-node")
	require.NoError(t, err)
	assert.Equal(t, node.Shadowsocks, n.Protocol)
	assert.Equal(t, "aes-256-gcm", n.Settings.Method)
	assert.Equal(t, "password", n.Settings.Password)
	assert.Equal(t, 8388, n.Port)
}

func TestDecodeShadowsocksLegacy(t *testing.T) {
	n, err := Decode("ss://YWVzLTI1Ni1nY206cGFzc3dvcmRAZXhhbXBsZS5jb206ODM4OA==#legacy")
	require.NoError(t, err)
	assert.Equal(t, "example.com", n.Server)
	assert.Equal(t, 8388, n.Port)
}

func TestRoundTripVMess(t *testing.T) {
	original := node.Node{
		Protocol:    node.VMess,
		Server:      "1.2.3.4",
		Port:        443,
		DisplayName: "roundtrip",
		Settings: node.Settings{
			UUID:       "uuid-value",
			Encryption: "auto",
			Transport:  "ws",
			WSPath:     "/path",
		},
	}
	uri, err := Encode(original)
	require.NoError(t, err)
	decoded, err := Decode(uri)
	require.NoError(t, err)
	assert.Equal(t, original.Server, decoded.Server)
	assert.Equal(t, original.Port, decoded.Port)
	assert.Equal(t, original.Settings.UUID, decoded.Settings.UUID)
}

func TestDecodeUnknownScheme(t *testing.T) {
	_, err := Decode("wireguard://blah")
	assert.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestClashProxyVMess(t *testing.T) {
	m := map[string]interface{}{
		"type":   "vmess",
		"name":   "clash-node",
		"server": "example.org",
		"port":   443,
		"uuid":   "abc",
		"cipher": "auto",
	}
	n, err := ClashProxy(m)
	require.NoError(t, err)
	assert.Equal(t, node.VMess, n.Protocol)
	assert.Equal(t, "example.org", n.Server)
	assert.Equal(t, 443, n.Port)
}

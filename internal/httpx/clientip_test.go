package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustedProxies_ClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies("10.0.0.0/8, 192.168.1.10")
	require.NoError(t, err)

	tests := []struct {
		name    string
		proxies *TrustedProxies
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr strips port", nil, "192.168.1.1:12345", nil, "192.168.1.1"},
		{"remote addr without port", nil, "192.168.1.1", nil, "192.168.1.1"},
		{"untrusted peer ignores x-forwarded-for", nil, "203.0.113.7:1", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "203.0.113.7"},
		{"untrusted peer ignores x-real-ip", proxies, "203.0.113.7:1", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.7"},
		{"trusted peer uses x-forwarded-for", proxies, "10.1.2.3:1", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "1.2.3.4"},
		{"spoofed left hop is skipped", proxies, "10.1.2.3:1", map[string]string{"X-Forwarded-For": "6.6.6.6, 1.2.3.4, 10.9.9.9"}, "1.2.3.4"},
		{"trusted single ip uses x-real-ip", proxies, "192.168.1.10:80", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted peer without headers", proxies, "10.1.2.3:1", nil, "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, tt.proxies.ClientIP(req))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	tp, err := ParseTrustedProxies("")
	require.NoError(t, err)
	assert.False(t, tp.Trusts("127.0.0.1"))

	tp, err = ParseTrustedProxies("127.0.0.1,::1")
	require.NoError(t, err)
	assert.True(t, tp.Trusts("127.0.0.1"))
	assert.True(t, tp.Trusts("::1"))
	assert.False(t, tp.Trusts("127.0.0.2"))

	_, err = ParseTrustedProxies("10.0.0.0/99")
	assert.Error(t, err)
	_, err = ParseTrustedProxies("proxy.local")
	assert.Error(t, err)
}

package tlsutil

import (
	"crypto/tls"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfig(t *testing.T) {
	cfg := ClientConfig("redis.internal")

	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Equal(t, "redis.internal", cfg.ServerName)
	require.NotEmpty(t, cfg.CipherSuites)

	insecure := tls.InsecureCipherSuites()
	for _, cs := range cfg.CipherSuites {
		for _, bad := range insecure {
			assert.NotEqual(t, bad.ID, cs, "insecure suite %s", bad.Name)
		}
	}
}

func TestClientConfig_IndependentCopies(t *testing.T) {
	a := ClientConfig("")
	a.CipherSuites[0] = 0
	b := ClientConfig("")
	assert.NotZero(t, b.CipherSuites[0])
}

func TestTransport(t *testing.T) {
	tr := Transport(128)

	require.NotNil(t, tr.TLSClientConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), tr.TLSClientConfig.MinVersion)
	assert.Equal(t, 128, tr.MaxIdleConnsPerHost)
	assert.True(t, tr.ForceAttemptHTTP2)

	assert.Equal(t, http.DefaultMaxIdleConnsPerHost, Transport(0).MaxIdleConnsPerHost)
}

func TestHTTPClient(t *testing.T) {
	c := HTTPClient(15*time.Second, 8)

	assert.Equal(t, 15*time.Second, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 8, tr.MaxIdleConnsPerHost)
}

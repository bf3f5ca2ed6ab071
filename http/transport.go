package http

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"golang.org/x/net/http2"
)

// TransportConfig configures the protocols and connection pool.
type TransportConfig struct {
	// EnableHTTP2 negotiates HTTP/2 over TLS (default: true)
	EnableHTTP2 bool

	// EnableHTTP3 tries HTTP/3 first for https URLs and falls back (default: false)
	EnableHTTP3 bool

	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
}

// DefaultTransportConfig returns default transport configuration
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		EnableHTTP2:           true,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
}

// NewTransport creates a round tripper for config.
func NewTransport(config TransportConfig) http.RoundTripper {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
	}

	if config.EnableHTTP2 {
		// Falls back to HTTP/1.1 if configuration fails.
		_ = http2.ConfigureTransport(transport)
	}

	if config.EnableHTTP3 {
		return newHTTP3Transport(transport)
	}
	return transport
}

// http3Transport tries HTTP/3 for https requests and falls back to the
// TCP transport when QUIC fails.
type http3Transport struct {
	tcp  http.RoundTripper
	quic *http3.Transport
}

func newHTTP3Transport(tcp http.RoundTripper) *http3Transport {
	return &http3Transport{
		tcp: tcp,
		quic: &http3.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			QUICConfig:      &quic.Config{Allow0RTT: true},
		},
	}
}

// RoundTrip implements http.RoundTripper.
func (t *http3Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "https" && req.Body == nil {
		if resp, err := t.quic.RoundTrip(req); err == nil {
			return resp, nil
		}
	}
	return t.tcp.RoundTrip(req)
}

// Close closes the QUIC transport.
func (t *http3Transport) Close() error {
	return t.quic.Close()
}

// ProtocolVersion returns the HTTP protocol version of resp.
func ProtocolVersion(resp *http.Response) string {
	switch resp.ProtoMajor {
	case 3:
		return "HTTP/3"
	case 2:
		return "HTTP/2"
	default:
		return "HTTP/1.1"
	}
}

// Package client provides the upstream HTTP clients for Xtream panels.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"xtream-web-go/internal/config"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Pools holds the two process-wide keep-alive connection pools: one for
// plaintext origins and one for TLS origins. They are built once at startup
// and shared by every upstream call; only idle sockets are shared.
type Pools struct {
	Plain *http.Transport
	TLS   *http.Transport
}

// NewPools builds both transports. When upstream.insecure_skip_verify is
// enabled (the default), the TLS pool accepts any certificate so self-signed
// IPTV panels keep working.
func NewPools(cfg *config.Config, logger *slog.Logger) (*Pools, error) {
	dial, err := newDialer(cfg.Upstream.ProxyURL)
	if err != nil {
		return nil, err
	}

	skip := cfg.Upstream.SkipVerify()
	if skip {
		logger.Warn("upstream TLS certificate verification is disabled",
			"setting", "upstream.insecure_skip_verify",
		)
	}
	if cfg.Upstream.ProxyURL != "" {
		logger.Info("upstream traffic routed through SOCKS5 proxy",
			"proxy", Redact(cfg.Upstream.ProxyURL),
		)
	}

	idle := cfg.Upstream.IdleConnections
	return &Pools{
		Plain: newTransport(dial, idle, nil),
		TLS: newTransport(dial, idle, &tls.Config{
			InsecureSkipVerify: skip, //nolint:gosec // upstream.insecure_skip_verify
		}),
	}, nil
}

// RoundTrip sends req through the pool matching its scheme. Each redirect hop
// is dispatched separately, so an http→https redirect switches pools.
func (p *Pools) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "https" {
		return p.TLS.RoundTrip(req)
	}
	return p.Plain.RoundTrip(req)
}

// CloseIdleConnections drops idle sockets in both pools.
func (p *Pools) CloseIdleConnections() {
	p.Plain.CloseIdleConnections()
	p.TLS.CloseIdleConnections()
}

func newTransport(dial dialFunc, idle int, tlsConf *tls.Config) *http.Transport {
	return &http.Transport{
		DialContext:         dial,
		MaxIdleConns:        idle,
		MaxIdleConnsPerHost: idle,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     tlsConf,
		// IPTV panels are known to stall under HTTP/2 flow control.
		ForceAttemptHTTP2: false,
		// Keep bytes and Content-Length exactly as the origin sent them.
		DisableCompression: true,
	}
}

func newDialer(proxyURL string) (dialFunc, error) {
	direct := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if proxyURL == "" {
		return direct.DialContext, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream proxy_url: %w", err)
	}
	d, err := proxy.FromURL(u, direct)
	if err != nil {
		return nil, fmt.Errorf("build upstream proxy dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("upstream proxy dialer for %q does not support contexts", u.Scheme)
	}
	return cd.DialContext, nil
}

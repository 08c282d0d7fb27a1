// Package model defines shared types for the proxy and the CRUD surface.
package model

import (
	"context"
	"io"
	"net/http"
)

// MediaKind classifies a proxy target before choosing the fetch strategy.
type MediaKind int

const (
	// KindBinary is relayed byte-for-byte.
	KindBinary MediaKind = iota
	// KindManifest is an HLS playlist that gets its references rewritten.
	KindManifest
)

func (k MediaKind) String() string {
	if k == KindManifest {
		return "manifest"
	}
	return "binary"
}

// ProxyRequest is one inbound /proxy-stream call.
type ProxyRequest struct {
	Ctx       context.Context
	TargetURL string
	Range     string // verbatim client Range header, empty when absent
}

// UpstreamResponse is a streamed upstream reply. Closing Body aborts the
// upstream read; Close is safe to call more than once.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

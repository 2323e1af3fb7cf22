package httpclient

import (
	"net/http"
	"time"
)

// sharedTransport is reused across all pooled clients so that calls to
// the same upstream host reuse TCP connections instead of paying a new
// handshake per request.
var sharedTransport = &http.Transport{
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     120 * time.Second,
	DisableKeepAlives:   false,
}

// NewPooledClient creates an http.Client with the given total-request
// timeout that shares a connection pool with other pooled clients.
func NewPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
	}
}

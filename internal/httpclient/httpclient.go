// Package httpclient builds the single pooled HTTP client shared across
// every check and every VM's http.* built-ins in one process invocation.
package httpclient

import (
	"net/http"
	"time"
)

// DefaultTimeout is the shared client's total-request timeout.
const DefaultTimeout = 30 * time.Second

// New builds a keep-alive, connection-pooled client with automatic
// decompression and the system TLS trust store. Called once per process.
func New() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   DefaultTimeout,
	}
}

// Package httpx owns the HTTP client used for all external calls, so the
// transport timeout is configured in one place.
package httpx

import (
	"net/http"
	"time"
)

const defaultExternalTimeout = 30 * time.Second

var externalClient = &http.Client{Timeout: defaultExternalTimeout}

// ExternalClient returns the shared client for external services.
func ExternalClient() *http.Client { return externalClient }

// Configure sets the external timeout from whole seconds; zero or negative
// keeps the default. Returns the applied timeout.
func Configure(seconds int) time.Duration {
	if seconds > 0 {
		externalClient.Timeout = time.Duration(seconds) * time.Second
	}
	return externalClient.Timeout
}

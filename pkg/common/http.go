package common

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultUserAgent is what the portal sees when no user agent is configured.
// The portal rejects obviously non-browser agents on some endpoints.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0"

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original request's headers
	// which might be shared or reused
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.transport.RoundTrip(req)
}

// HTTPClient returns an http client with a cookie jar and the given user-agent
// set on every request. An empty userAgent falls back to DefaultUserAgent.
// timeout is the total budget for a single request.
func HTTPClient(timeout time.Duration, userAgent string) *http.Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	// cookiejar.New never returns a non-nil error
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		panic(err)
	}

	return &http.Client{
		Transport: &userAgentTransport{
			// each client gets its own transport so closing one session's idle
			// connections doesn't touch another's
			transport: http.DefaultTransport.(*http.Transport).Clone(),
			userAgent: userAgent,
		},
		Jar:     jar,
		Timeout: timeout,
	}
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the
// wrapped transport.
func (t *userAgentTransport) CloseIdleConnections() {
	if ci, ok := t.transport.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}

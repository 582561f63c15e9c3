package pkg

import (
	"net/http"
	"time"

	"go.uber.org/ratelimit"
)

type limitedTransport struct {
	limiter ratelimit.Limiter
	next    http.RoundTripper
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.limiter.Take()
	return t.next.RoundTrip(req)
}

// NewHTTPClient returns a client that issues at most perSecond requests per second. A
// non-positive perSecond disables the limit.
func NewHTTPClient(timeout time.Duration, perSecond int) *http.Client {
	limiter := ratelimit.NewUnlimited()
	if perSecond > 0 {
		limiter = ratelimit.New(perSecond)
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &limitedTransport{
			limiter: limiter,
			next:    http.DefaultTransport,
		},
	}
}

// Package api builds the HTTP clients used for outbound API calls
// (WhatsApp, Resend, Telegram, the LLM endpoint).
//
// All clients share one pooled transport so keep-alive connections are
// reused across notifiers.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	transportOnce   sync.Once
	sharedTransport *http.Transport
)

// Transport returns the pooled transport shared by every client.
//
// Connection pool configuration:
//   - MaxIdleConns: 100 across all hosts
//   - MaxIdleConnsPerHost: 10
//   - IdleConnTimeout: 90 seconds
func Transport() *http.Transport {
	transportOnce.Do(func() {
		sharedTransport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		}
	})
	return sharedTransport
}

// NewHTTPClient returns a plain client over the shared transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: Transport()}
}

// Options configures a resty client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int // retries on transport errors and 5xx/429 responses
}

// NewRestClient returns a JSON resty client.
//
// Retries back off from 1s up to 5s. Tests should pass RetryCount 0.
func NewRestClient(opts Options) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.NewWithClient(NewHTTPClient(timeout)).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	if opts.BaseURL != "" {
		client.SetBaseURL(opts.BaseURL)
	}
	if opts.RetryCount > 0 {
		client.
			SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(1 * time.Second).
			SetRetryMaxWaitTime(5 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
			})
	}
	return client
}

// Package isuite implements the authenticated delivery pipeline to SAP
// Integration Suite: OAuth2 client-credentials token acquisition with an
// in-memory cache, mapping of alert batches onto the iFlow wire schema, and
// HTTP delivery with a bounded single retry on authentication rejection.
package isuite

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"snowalert/internal/types"
)

// errServerStatus marks a 5xx response as a failure for the circuit breaker
// while still handing the response back to the caller, which must report the
// status code in its result.
var errServerStatus = errors.New("isuite: upstream returned 5xx")

// BaseClient wraps an *http.Client with a circuit breaker and User-Agent
// injection for all outbound Integration Suite calls. It performs no retries
// of its own: the delivery retry contract (one retry, only on 401) lives in
// DeliveryClient.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBaseClient creates a BaseClient. The breaker opens after more than five
// consecutive transport or 5xx failures, shedding load from a struggling
// endpoint without altering the per-request outcome contract.
func NewBaseClient(httpClient *http.Client, breakerName, userAgent string) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &BaseClient{
		client:    httpClient,
		breaker:   cb,
		userAgent: userAgent,
	}
}

// Do executes the request through the breaker. Any HTTP response, including
// 4xx and 5xx, is returned to the caller as-is (the caller closes the body).
// A non-nil error means no usable response: transport failure, timeout, or
// breaker open.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 {
			return r, errServerStatus
		}
		return r, nil
	})

	if err != nil {
		if errors.Is(err, errServerStatus) && resp != nil {
			return resp, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, types.NewAppError(
				types.ErrCodeUpstreamUnavailable,
				"circuit breaker is open; integration endpoint unavailable",
				err,
			)
		}
		return nil, err
	}
	return resp, nil
}

// maxResponseBodyRead limits how much of a response body is read for error
// messages and result echoing.
const maxResponseBodyRead = 4096

// readBody reads at most maxResponseBodyRead bytes of the response body.
func readBody(resp *http.Response) []byte {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
	return body
}

// truncate shortens s for inclusion in log and result messages.
func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"panda-blog/authentication"
	"panda-blog/metrics"

	"resty.dev/v3"
)

// envelope is the response shape shared by all services
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Pagination as returned by the list endpoints
type Pagination struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// StatusError is a response of a sibling service outside 2xx
type StatusError struct {
	Method string
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

type base struct {
	client *resty.Client
}

func newBase(service string, baseURL string, timeout time.Duration) base {
	client := resty.NewWithTransportSettings(&resty.TransportSettings{
		DialerTimeout:         timeout,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
	})
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	client.AddResponseMiddleware(metricMiddleware(service))

	return base{client: client}
}

// paths carry ids, so latency is labelled by target service instead
func metricMiddleware(service string) resty.ResponseMiddleware {
	return func(_ *resty.Client, response *resty.Response) error {
		metrics.ServiceRequestLatency.WithLabelValues(
			service,
			response.Request.Method,
			fmt.Sprintf("%d", response.StatusCode()),
		).Observe(response.Duration().Seconds())

		return nil
	}
}

// Close releases idle connections
func (b base) Close() error {
	return b.client.Close()
}

// r starts a request, the correlation id of the inbound request travels along
func (b base) r(ctx context.Context) *resty.Request {
	req := b.client.R().WithContext(ctx)
	if id := authentication.CorrelationID(ctx); id != "" {
		req.SetHeader(authentication.HeaderCorrelationID, id)
	}
	return req
}

func check(res *resty.Response) error {
	if res.IsError() {
		return &StatusError{
			Method: res.Request.Method,
			Path:   res.Request.URL,
			Status: res.StatusCode(),
		}
	}
	return nil
}

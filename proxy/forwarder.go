package proxy

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"panda-blog/apperror"
	"panda-blog/authentication"
	"panda-blog/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"resty.dev/v3"
)

// headers that describe a single hop and must not be relayed (RFC 7230 6.1), plus the ones the
// transport recomputes
var skipHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Host":                true,
	"Content-Length":      true,
	"Accept-Encoding":     true,
	"Content-Encoding":    true,
}

// Forwarder relays requests to one internal service
type Forwarder struct {
	Service string
	BaseURL string
	client  *resty.Client
	timeout time.Duration
	log     *zap.Logger
}

// NewForwarder returns a forwarder for the service listening at baseURL
func NewForwarder(service string, baseURL string, timeout time.Duration, log *zap.Logger) *Forwarder {
	client := resty.NewWithTransportSettings(&resty.TransportSettings{
		DialerTimeout:         timeout,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
	})
	// redirects go back to the caller as they are
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))

	return &Forwarder{
		Service: service,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		timeout: timeout,
		log:     log.With(zap.String("upstream", service)),
	}
}

// Close releases idle connections
func (f *Forwarder) Close() error {
	return f.client.Close()
}

// Forward is the gin handler relaying the request as-is. Any response of the target, error
// statuses included, is mirrored; only a missing response becomes 500 "Service unavailable".
func (f *Forwarder) Forward() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			f.unavailable(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), f.timeout)
		defer cancel()

		req := f.client.R().WithContext(ctx)
		req.SetHeaderMultiValues(outboundHeaders(c.Request.Header))
		if len(body) > 0 {
			req.SetBody(body)
		}

		res, err := req.Execute(c.Request.Method, f.BaseURL+c.Request.URL.RequestURI())
		if err != nil {
			f.unavailable(c, err)
			return
		}

		for k, values := range res.Header() {
			if skipHeaders[http.CanonicalHeaderKey(k)] {
				continue
			}
			for _, v := range values {
				c.Writer.Header().Add(k, v)
			}
		}

		metrics.ProxiedRequests.WithLabelValues(f.Service, strconv.Itoa(res.StatusCode())).Inc()

		c.Status(res.StatusCode())
		if payload := res.Bytes(); len(payload) > 0 {
			_, _ = c.Writer.Write(payload)
		}
	}
}

func (f *Forwarder) unavailable(c *gin.Context, err error) {
	metrics.UpstreamFailures.WithLabelValues(f.Service).Inc()
	f.log.Error("proxy error",
		zap.String("correlationId", c.GetHeader(authentication.HeaderCorrelationID)),
		zap.String("url", c.Request.URL.RequestURI()),
		zap.Error(err))

	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": apperror.ErrServiceUnavailable.Error(),
	})
}

// outboundHeaders copies the inbound headers minus the hop-by-hop ones
func outboundHeaders(in http.Header) map[string][]string {
	out := make(map[string][]string, len(in)+1)
	for k, values := range in {
		if skipHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		out[k] = append([]string(nil), values...)
	}

	if len(out["Content-Type"]) == 0 {
		out["Content-Type"] = []string{"application/json"}
	}

	// identity and correlation are set by the gateway middlewares, carried explicitly
	for _, h := range []string{authentication.HeaderUserID, authentication.HeaderUserEmail, authentication.HeaderCorrelationID} {
		if v := in.Get(h); v != "" {
			out[http.CanonicalHeaderKey(h)] = []string{v}
		}
	}

	return out
}

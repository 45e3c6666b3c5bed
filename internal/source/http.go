package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"

	"github.com/sakif/snippet-box/internal/apperror"
	"github.com/sakif/snippet-box/internal/reconcile"
)

// maxBodyBytes bounds how much of a remote payload is read.
const maxBodyBytes = 8 << 20

// HTTP fetches a remote JSON snippet list.
//
// The transport stack is:
//  1. httpcache (ETag / Last-Modified conditional requests, in-memory cache)
//  2. a token-bucket limiter in front of every request
//
// A cached 304 comes back from httpcache as the stored 200 body, so an unchanged
// remote list costs one round trip and no download.
type HTTP struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	origin  reconcile.Origin
}

var _ Source = (*HTTP)(nil)

// HTTPOption configures an HTTP source.
type HTTPOption func(*HTTP)

// WithClient replaces the underlying client. Its transport is used as-is,
// without the cache layer.
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithRateLimit allows perSecond fetches per second with a burst of one.
// perSecond <= 0 disables limiting.
func WithRateLimit(perSecond float64) HTTPOption {
	return func(h *HTTP) {
		if perSecond <= 0 {
			h.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		h.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewHTTP returns a Source fetching url. Imported records are marked with url.
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		url: url,
		client: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		origin:  reconcile.Origin{Tag: BundleTag, Name: url},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTP) Fetch(ctx context.Context) ([]any, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, apperror.SourceUnavailable(h.url, fmt.Errorf("rate limit: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, apperror.SourceUnavailable(h.url, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, apperror.SourceUnavailable(h.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.SourceUnavailable(h.url, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperror.SourceUnavailable(h.url, fmt.Errorf("reading body: %w", err))
	}
	return reconcile.Decode(h.url, data)
}

func (h *HTTP) Origin() reconcile.Origin { return h.origin }

// Package fetch implements the HTTP boundary the Discovery and Scraper
// Workers share: GET a URL, classify the outcome per spec §4.6 (200
// proceed, 404 permanent, 429/5xx transient, network/timeout transient),
// and enforce a byte ceiling on PDF downloads via both a Content-Length
// pre-check and a post-read LimitReader, in the manner of
// cmd/scraper-sources/manuals/downloader.go.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Sentinel outcomes a caller classifies into domain.Recoverability. Network
// and server-side failures are recoverable; a 404 and an oversize payload
// are not.
var (
	ErrNotFound    = errors.New("fetch: not found (404)")
	ErrRateLimited = errors.New("fetch: rate limited (429)")
	ErrServerError = errors.New("fetch: upstream server error (5xx)")
	ErrNetwork     = errors.New("fetch: network or timeout")
	ErrOversize    = errors.New("fetch: payload exceeds max size")
)

// IsRecoverable reports whether err represents a transient condition the
// Coordinator should retry, per spec §4.6/§7's error taxonomy. Parse
// errors are never passed here — callers check those separately via
// errors.As(*domain.ParseError) before reaching for IsRecoverable.
func IsRecoverable(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrOversize):
		return false
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrServerError), errors.Is(err, ErrNetwork):
		return true
	default:
		// An unclassified error (e.g. a context cancellation) is treated as
		// transient: retrying costs nothing and a permanent condition would
		// already have been classified above.
		return true
	}
}

// Fetcher is the contract both workers use to reach the upstream site. A
// configurable implementation may route through a headless browser to
// execute the search page's JavaScript (spec §6); the parsers operate on
// the rendered HTML identically either way, so Fetcher only ever returns
// a string.
type Fetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
	FetchPDF(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

// HTTPFetcher is the direct-HTTP implementation. It is also what a
// headless-browser variant would wrap: the browser renders the page and
// hands the final HTML to the same classify/parse pipeline.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds an HTTPFetcher. A nil client gets http.DefaultClient.
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, userAgent: userAgent}
}

var _ Fetcher = (*HTTPFetcher)(nil)

// FetchHTML GETs url and returns the response body as a string.
func (f *HTTPFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	resp, err := f.do(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return "", err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	return string(body), nil
}

// FetchPDF GETs url and returns the response body, enforcing maxBytes both
// via a Content-Length pre-check and a post-read size check (a Content-
// Length of 0 or absent does not bypass the post-read enforcement).
func (f *HTTPFetcher) FetchPDF(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	resp, err := f.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, ErrOversize
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, ErrOversize
	}
	return data, nil
}

func (f *HTTPFetcher) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return resp, nil
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return ErrServerError
	case code >= 400:
		return ErrNotFound
	default:
		return nil
	}
}

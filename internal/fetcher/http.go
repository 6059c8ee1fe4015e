package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/walkability/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	// Timeout bounds one attempt including reading the body. National
	// extracts run to hundreds of megabytes, so the default is 15 minutes.
	Timeout time.Duration
	// Retry is the policy applied to each fetch. Zero value uses
	// resilience.DownloadRetryConfig.
	Retry        resilience.RetryConfig
	RateLimiters map[string]*rate.Limiter
	// Header is sent with every request (e.g. API keys).
	Header http.Header
}

// HTTPFetcher implements Fetcher using net/http with retry and per-host rate limiting.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// DefaultRateLimiters returns the per-host limiters for known data hosts.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"catalog.data.gov": rate.NewLimiter(5, 5),
		"edg.epa.gov":      rate.NewLimiter(2, 2),
		"www2.census.gov":  rate.NewLimiter(5, 5),
	}
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Minute
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DownloadRetryConfig()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "walkability/1.0"
	}
	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(20, 20)
		f.limiters[host] = lim
	}
	return lim
}

func (f *HTTPFetcher) retryConfig(op, rawURL string) resilience.RetryConfig {
	cfg := f.opts.Retry
	cfg.OnRetry = func(attempt int, err error) {
		zap.L().Warn("http fetch failed, retrying",
			zap.String("component", "fetcher"),
			zap.String("operation", op),
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Error(err),
		)
	}
	return cfg
}

// get performs one GET. Non-2xx responses are closed and returned as errors,
// transient when the status is retryable.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	for k, vs := range f.opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, resilience.StatusError(resp.StatusCode, rawURL)
	}
	return resp, nil
}

// Download fetches the URL and returns the open response body. Only the
// request itself is retried; failures while the caller reads the body are
// the caller's to handle.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := resilience.DoVal(ctx, f.retryConfig("download", rawURL), func(ctx context.Context) (*http.Response, error) {
		return f.get(ctx, rawURL)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: download %s", rawURL)
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL into path, retrying the whole transfer when
// the body is cut short.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	n, err := resilience.DoVal(ctx, f.retryConfig("download_to_file", rawURL), func(ctx context.Context) (int64, error) {
		resp, err := f.get(ctx, rawURL)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close() //nolint:errcheck
		return writeFile(path, resp.Body)
	})
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: download %s to file", rawURL)
	}
	return n, nil
}

// FetchText fetches the whole body as a string, retrying the request and the
// body read together.
func (f *HTTPFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	text, err := resilience.DoVal(ctx, f.retryConfig("fetch_text", rawURL), func(ctx context.Context) (string, error) {
		resp, err := f.get(ctx, rawURL)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close() //nolint:errcheck

		var sb strings.Builder
		if resp.ContentLength > 0 {
			sb.Grow(int(resp.ContentLength))
		}
		if _, err := io.Copy(&sb, resp.Body); err != nil {
			return "", err
		}
		return sb.String(), nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: fetch %s", rawURL)
	}
	return text, nil
}

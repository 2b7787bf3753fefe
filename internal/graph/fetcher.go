// Package graph talks to the page/post/video Graph API: a retrying fetcher,
// feed page decoding and typed calls for the enrichment endpoints.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/ppiankov/reachpan/internal/privacy"
)

const (
	DefaultAttempts      = 3
	DefaultRetryInterval = 3 * time.Second
	DefaultTimeout       = 30 * time.Second

	maxResponseBytes = 32 * 1024 * 1024
)

// FetchResult is one decoded API response.
type FetchResult struct {
	Status int
	Body   map[string]json.RawMessage
	// Next is the URL of the following feed page, empty on the last page.
	Next string
}

// FetchExhaustedError is returned once every attempt for URL has failed.
type FetchExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts | %s: %v", e.Attempts, e.URL, e.Err)
}

func (e *FetchExhaustedError) Unwrap() error { return e.Err }

// Doer issues one logical GET. *Fetcher is the production implementation.
type Doer interface {
	Fetch(ctx context.Context, rawURL string) (*FetchResult, error)
}

// FetcherConfig holds configuration for NewFetcher. Zero values fall back to
// the package defaults; RequestsPerSecond <= 0 disables pacing.
type FetcherConfig struct {
	Attempts          int
	RetryInterval     time.Duration
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Fetcher performs GETs with a bounded number of attempts and a flat pause
// between them. A single Fetcher is shared by every worker of a run, so its
// limiter paces the run as a whole.
type Fetcher struct {
	http     *http.Client
	limiter  *rate.Limiter
	attempts int
	interval time.Duration
	log      zerolog.Logger
}

// NewFetcher constructs a Fetcher from cfg.
func NewFetcher(cfg FetcherConfig, log zerolog.Logger) *Fetcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Fetcher{
		http:     hc,
		limiter:  rate.NewLimiter(limit, 1),
		attempts: cfg.Attempts,
		interval: cfg.RetryInterval,
		log:      log,
	}
}

// Fetch GETs rawURL until it answers 200 with a JSON object or the attempts
// run out. Network errors and non-200 statuses are retried; an undecodable
// 200 body is not.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	safeURL := privacy.Secrets(rawURL)
	backoff := retry.WithMaxRetries(uint64(f.attempts-1), retry.NewConstant(f.interval))

	var (
		result  *FetchResult
		lastErr error
		tries   int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tries++
		res, err := f.once(ctx, rawURL)
		if err == nil {
			result = res
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
		f.log.Warn().
			Str("url", safeURL).
			Int("attempt", tries).
			Int("max_attempts", f.attempts).
			Msg(privacy.Secrets(err.Error()))
		return retry.RetryableError(err)
	})
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if lastErr != nil && errors.Is(err, lastErr) {
		return nil, &FetchExhaustedError{URL: safeURL, Attempts: tries, Err: lastErr}
	}
	return nil, fmt.Errorf("fetch %s: %w", safeURL, err)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (f *Fetcher) once(ctx context.Context, rawURL string) (*FetchResult, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &permanentError{err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &permanentError{err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, errors.New(privacy.Secrets(fmt.Sprintf("do request: %v", err)))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &permanentError{err: fmt.Errorf("decode %s: %w", privacy.Secrets(rawURL), err)}
	}

	res := &FetchResult{Status: resp.StatusCode, Body: decoded}
	if raw, ok := decoded["paging"]; ok {
		var paging struct {
			Next string `json:"next"`
		}
		if err := json.Unmarshal(raw, &paging); err == nil {
			res.Next = paging.Next
		}
	}
	return res, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

package peer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/decred/slog"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
	"golang.org/x/time/rate"
)

var log slog.Logger = slog.Disabled

// UseLogger sets the package-level logger used by the archive fetcher and
// peer clients.
func UseLogger(logger slog.Logger) { log = logger }

// ArchiveFetcher is the archive-URL collaborator consumed by the Ledger
// Syncer (§4.B step 1, §6 "Archive fetch"). Content is an opaque blob; the
// Block Store is responsible for parsing it.
type ArchiveFetcher interface {
	FetchBlock(ctx context.Context, index uint64) ([]byte, error)
}

// HTTPArchiveFetcher round-robins across a set of base URLs, retrying a
// transient failure against the next URL with exponential backoff before
// giving up (§4.B "round-robin with exponential backoff on transient
// failure").
type HTTPArchiveFetcher struct {
	baseURLs []string
	client   *http.Client
	limiter  *rate.Limiter
	next     uint64 // atomic round-robin cursor

	maxRetries int
	baseDelay  time.Duration
}

// HTTPArchiveFetcherOption configures an HTTPArchiveFetcher.
type HTTPArchiveFetcherOption func(*HTTPArchiveFetcher)

// WithRateLimit caps outbound archive fetch requests per second, guarding
// against a misconfigured sync window hammering an archive mirror.
func WithRateLimit(perSecond float64, burst int) HTTPArchiveFetcherOption {
	return func(f *HTTPArchiveFetcher) {
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetryPolicy overrides the default retry count and base backoff delay.
func WithRetryPolicy(maxRetries int, baseDelay time.Duration) HTTPArchiveFetcherOption {
	return func(f *HTTPArchiveFetcher) {
		f.maxRetries = maxRetries
		f.baseDelay = baseDelay
	}
}

// NewHTTPArchiveFetcher builds a fetcher over baseURLs (e.g.
// "https://archive1.example.com", "https://archive2.example.com"); each
// is tried in round-robin order per call, and all are retried with
// backoff before the fetch is declared a failure.
func NewHTTPArchiveFetcher(baseURLs []string, opts ...HTTPArchiveFetcherOption) *HTTPArchiveFetcher {
	f := &HTTPArchiveFetcher{
		baseURLs:   baseURLs,
		client:     &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchBlock fetches the opaque block-archive blob for a given index,
// trying each configured base URL in round-robin order with exponential
// backoff between attempts.
func (f *HTTPArchiveFetcher) FetchBlock(ctx context.Context, index uint64) ([]byte, error) {
	if len(f.baseURLs) == 0 {
		return nil, errs.New(errs.KindNetwork, "peer: no archive URLs configured")
	}

	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, errs.Wrap(errs.KindNetwork, err)
			}
		}

		cursor := atomic.AddUint64(&f.next, 1) - 1
		base := f.baseURLs[cursor%uint64(len(f.baseURLs))]

		blob, err := f.fetchOnce(ctx, base, index)
		if err == nil {
			return blob, nil
		}
		lastErr = err
		log.Warnf("peer: archive fetch of block %d from %s failed (attempt %d/%d): %v",
			index, base, attempt+1, f.maxRetries, err)

		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.KindNetwork, ctx.Err())
		case <-time.After(f.baseDelay << uint(attempt)):
		}
	}

	return nil, errs.Wrap(errs.KindNetwork, lastErr)
}

func (f *HTTPArchiveFetcher) fetchOnce(ctx context.Context, base string, index uint64) ([]byte, error) {
	url := fmt.Sprintf("%s/blocks/%d", base, index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("peer: archive returned status %d for block %d", resp.StatusCode, index)
	}

	return io.ReadAll(resp.Body)
}

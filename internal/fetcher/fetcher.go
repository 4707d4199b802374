// Package fetcher retrieves one OAC report per (gas day, cycle) from the
// remote reporting endpoint and keeps the raw body as an artifact.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/oacload/internal/artifact"
	"github.com/dwsmith1983/oacload/pkg/types"
)

// DefaultEndpoint is the operationally-available capacity report URL.
const DefaultEndpoint = "https://twtransfer.energytransfer.com/ipost/capacity/operationally-available"

// Breaker and transport defaults.
const (
	defaultTimeout       = 60 * time.Second
	defaultFailThreshold = 5
	defaultCooldown      = 30 * time.Second
	maxBodyBytes         = 64 << 20
)

// HTTPFetcher downloads reports over HTTP through a circuit breaker.
type HTTPFetcher struct {
	endpoint  *url.URL
	client    *http.Client
	artifacts *artifact.Store
	reuse     bool
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger

	failThreshold int
	cooldown      time.Duration
	maxBody       int64
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *HTTPFetcher) { f.logger = l }
}

// WithArtifactReuse controls whether a non-empty artifact already on disk
// for a key is returned instead of downloading again.
func WithArtifactReuse(reuse bool) Option {
	return func(f *HTTPFetcher) { f.reuse = reuse }
}

// WithMaxBodyBytes caps the accepted response size. A larger body fails the
// fetch rather than being truncated.
func WithMaxBodyBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithBreaker sets the consecutive-failure threshold that opens the breaker
// and how long it stays open before probing again.
func WithBreaker(failThreshold int, cooldown time.Duration) Option {
	return func(f *HTTPFetcher) {
		if failThreshold > 0 {
			f.failThreshold = failThreshold
		}
		if cooldown > 0 {
			f.cooldown = cooldown
		}
	}
}

// New creates a fetcher for endpoint that writes artifacts to store.
func New(endpoint string, store *artifact.Store, opts ...Option) (*HTTPFetcher, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("artifact store required")
	}

	f := &HTTPFetcher{
		endpoint:      u,
		client:        &http.Client{Timeout: defaultTimeout},
		artifacts:     store,
		reuse:         true,
		logger:        slog.Default(),
		failThreshold: defaultFailThreshold,
		cooldown:      defaultCooldown,
		maxBody:       maxBodyBytes,
	}
	for _, o := range opts {
		o(f)
	}

	threshold := uint32(f.failThreshold)
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "oac-endpoint",
		MaxRequests: 1,
		Timeout:     f.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// A 4xx means the endpoint answered; only outages trip the breaker.
			return err == nil || Classify(err) == types.FailurePermanent
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return f, nil
}

// BreakerState returns the current circuit breaker state.
func (f *HTTPFetcher) BreakerState() gobreaker.State {
	return f.breaker.State()
}

// Fetch retrieves the report for key. The body is written to the artifact
// store before it is returned.
func (f *HTTPFetcher) Fetch(ctx context.Context, asset string, key types.DedupKey) (*types.RawTable, error) {
	if !key.Cycle.Valid() {
		return nil, &FetchError{Err: fmt.Errorf("unknown cycle %q", key.Cycle), Category: types.FailurePermanent}
	}
	if f.reuse {
		data, path, ok, err := f.artifacts.Lookup(asset, key)
		if err != nil {
			return nil, err
		}
		if ok {
			f.logger.Info("reusing downloaded artifact", "key", key.String(), "path", path)
			return &types.RawTable{Key: key, Data: data, Path: path, Reused: true}, nil
		}
	}

	data, err := f.download(ctx, asset, key)
	if err != nil {
		return nil, err
	}

	path, err := f.artifacts.Write(asset, key, data)
	if err != nil {
		return nil, err
	}
	f.logger.Info("report downloaded", "key", key.String(), "path", path, "bytes", len(data))
	return &types.RawTable{Key: key, Data: data, Path: path}, nil
}

// RequestURL builds the report URL for asset and key.
func (f *HTTPFetcher) RequestURL(asset string, key types.DedupKey) string {
	u := *f.endpoint
	q := u.Query()
	q.Set("f", "csv")
	q.Set("extension", "csv")
	q.Set("asset", asset)
	q.Set("gasDay", key.GasDay())
	q.Set("cycle", strconv.Itoa(key.Cycle.Code()))
	q.Set("searchType", "ALL")
	q.Set("searchString", "")
	q.Set("locType", "ALL")
	q.Set("locZone", "ALL")
	u.RawQuery = q.Encode()
	return u.String()
}

func (f *HTTPFetcher) download(ctx context.Context, asset string, key types.DedupKey) ([]byte, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.get(ctx, f.RequestURL(asset, key))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &FetchError{Err: err, Category: types.FailureTransient}
		}
		return nil, err
	}
	return result.([]byte), nil
}

func (f *HTTPFetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("creating request: %w", err), Category: types.FailurePermanent}
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err, Category: classifyTransport(ctx, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{StatusCode: resp.StatusCode, Category: classifyHTTPStatus(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("reading response: %w", err), Category: classifyTransport(ctx, err)}
	}
	if int64(len(body)) > f.maxBody {
		return nil, &FetchError{StatusCode: http.StatusOK, Err: fmt.Errorf("response body exceeds %d bytes", f.maxBody), Category: types.FailurePermanent}
	}
	if len(body) == 0 {
		return nil, &FetchError{StatusCode: http.StatusOK, Err: errors.New("empty response body"), Category: types.FailurePermanent}
	}
	return body, nil
}

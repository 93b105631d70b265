package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/eth-reserves/internal/circuitbreaker"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/metrics"
)

// HTTPClientConfig configures a provider JSON client
type HTTPClientConfig struct {
	Provider       string
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64 // zero disables client-side limiting
	MaxRetries     int
	InitialBackoff time.Duration
	Headers        map[string]string
	Breaker        *circuitbreaker.CircuitBreaker
}

// jsonClient issues rate-limited GET requests against a provider and retries
// rate-limit and server errors with exponential backoff
type jsonClient struct {
	provider       string
	baseURL        string
	client         *resty.Client
	limiter        *rate.Limiter
	breaker        *circuitbreaker.CircuitBreaker
	maxRetries     int
	initialBackoff time.Duration
}

func newJSONClient(cfg HTTPClientConfig) *jsonClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSec > 0 {
		burst := int(cfg.RequestsPerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}

	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}

	return &jsonClient{
		provider:       cfg.Provider,
		baseURL:        cfg.BaseURL,
		client:         client,
		limiter:        limiter,
		breaker:        cfg.Breaker,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: initial,
	}
}

// getJSON fetches path and decodes the body into out
func (c *jsonClient) getJSON(ctx context.Context, op, path string, query map[string]string, out interface{}) error {
	start := time.Now()

	call := func() error { return c.getWithRetry(ctx, path, query, out) }
	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call()
	}

	metrics.ProviderLatency.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())
	metrics.ProviderRequests.WithLabelValues(c.provider, statusLabel(err)).Inc()

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return NewAdapterError(c.provider, op, err, map[string]interface{}{"path": path})
	}
	return nil
}

func (c *jsonClient) getWithRetry(ctx context.Context, path string, query map[string]string, out interface{}) error {
	url := c.baseURL + path

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(contextError(ctx, err))
		}

		resp, err := c.client.R().SetContext(ctx).SetQueryParams(query).Get(url)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(contextError(ctx, err))
			}
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}

		switch code := resp.StatusCode(); {
		case code == http.StatusTooManyRequests:
			logging.FromContext(ctx).WithField("provider", c.provider).Warn("rate limited, retrying with backoff")
			return ErrProviderRateLimit
		case code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: status %d", ErrProviderUnavailable, code)
		case code == http.StatusNotFound:
			return backoff.Permanent(ErrSymbolNotFound)
		case code >= http.StatusBadRequest:
			return backoff.Permanent(fmt.Errorf("unexpected status code %d: %s", code, truncateBody(resp.Body())))
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = 10 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	var policy backoff.BackOff = b
	if c.maxRetries >= 0 {
		policy = backoff.WithMaxRetries(b, uint64(c.maxRetries))
	}

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrProviderTimeout) {
		return contextError(ctx, err)
	}
	return err
}

func contextError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, ErrProviderRateLimit):
		return "rate_limited"
	case errors.Is(err, ErrProviderTimeout):
		return "timeout"
	case errors.Is(err, ErrSymbolNotFound):
		return "not_found"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// isProviderFailure reports whether err reflects provider health; unknown symbols do not
func isProviderFailure(err error) bool {
	return !errors.Is(err, ErrSymbolNotFound) && !errors.Is(err, context.Canceled)
}

// NewProviderBreakers returns a breaker manager whose breakers ignore unknown-symbol errors
func NewProviderBreakers() *circuitbreaker.Manager {
	return circuitbreaker.NewManager(func(name string) *circuitbreaker.Config {
		cfg := circuitbreaker.DefaultConfig(name)
		cfg.IsFailure = isProviderFailure
		return cfg
	})
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

// Package alphavantage implements extraction.Source against the Alpha
// Vantage query API.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"market-etl/internal/domain"
	"market-etl/internal/extraction"
	"market-etl/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://www.alphavantage.co/query"
	DefaultTimeout     = 10 * time.Second
	DefaultMinInterval = 15 * time.Second
	DefaultMaxRetries  = 3
	DefaultBackoff     = 20 * time.Second
)

// Provider errors.
var (
	ErrRateLimited           = errors.New("rate limited")
	ErrInformation           = errors.New("api notice")
	ErrAPI                   = errors.New("api error")
	ErrUnexpectedPayload     = errors.New("unexpected payload")
	ErrUnsupportedAssetClass = errors.New("unsupported asset class")
)

// Client fetches daily series from Alpha Vantage.
// Implements extraction.Source interface.
type Client struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	archive    *Archive
	logger     *log.Logger
	calls      atomic.Int64
}

var _ extraction.Source = (*Client)(nil)

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the query endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMinInterval sets the minimum spacing between requests.
// Zero disables throttling.
func WithMinInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.limiter = newLimiter(d)
	}
}

// WithMaxRetries sets maximum attempts per request.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBackoff sets the sleep after a throttled response.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithArchive stores every payload and replays archived ones.
func WithArchive(a *Archive) ClientOption {
	return func(c *Client) {
		c.archive = a
	}
}

// WithLogger sets the logger used for retry messages.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new Alpha Vantage client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: DefaultTimeout},
		limiter:    newLimiter(DefaultMinInterval),
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	return c
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Calls returns the number of HTTP requests issued.
func (c *Client) Calls() int {
	return int(c.calls.Load())
}

// Fetch returns the raw series for a ticker, from the archive when present.
func (c *Client) Fetch(ctx context.Context, ticker domain.Ticker) (*extraction.Series, error) {
	payload, err := c.payload(ctx, ticker)
	if err != nil {
		return nil, &domain.ExtractionError{Ticker: ticker.Symbol, Err: err}
	}

	points, err := ParsePayload(payload, ticker)
	if err != nil {
		return nil, &domain.ExtractionError{Ticker: ticker.Symbol, Err: err}
	}
	return &extraction.Series{Ticker: ticker.Symbol, Points: points}, nil
}

func (c *Client) payload(ctx context.Context, ticker domain.Ticker) (Payload, error) {
	if c.archive != nil {
		p, ok, err := c.archive.Load(ticker.Symbol)
		if err != nil {
			return nil, err
		}
		if ok {
			observability.RecordPayloadReplay()
			return p, nil
		}
	}

	p, err := c.fetchPayload(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if c.archive != nil {
		if err := c.archive.Save(ticker.Symbol, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (c *Client) fetchPayload(ctx context.Context, ticker domain.Ticker) (Payload, error) {
	switch ticker.AssetClass {
	case domain.AssetClassEquity:
		return c.fetchEquity(ctx, ticker.Symbol)
	case domain.AssetClassFX:
		return c.fetchFX(ctx, ticker.Symbol)
	case domain.AssetClassCrypto:
		market := ticker.Market
		if market == "" {
			market = DefaultMarket
		}
		return c.fetchCrypto(ctx, ticker.Symbol, market)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAssetClass, ticker.AssetClass)
	}
}

// fetchEquity tries adjusted full history, then unadjusted full, then
// unadjusted compact.
func (c *Client) fetchEquity(ctx context.Context, symbol string) (Payload, error) {
	attempts := []struct {
		function   string
		outputSize string
	}{
		{FunctionDailyAdjusted, "full"},
		{FunctionDaily, "full"},
		{FunctionDaily, "compact"},
	}

	var lastErr error
	for _, a := range attempts {
		p, err := c.request(ctx, a.function, url.Values{
			"symbol":     {symbol},
			"outputsize": {a.outputSize},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		p.annotate(a.function, symbol, "")
		return p, nil
	}
	return nil, lastErr
}

func (c *Client) fetchFX(ctx context.Context, pair string) (Payload, error) {
	if len(pair) != 6 {
		return nil, fmt.Errorf("fx pair %q: expected 6 letters", pair)
	}
	p, err := c.request(ctx, FunctionFXDaily, url.Values{
		"from_symbol": {pair[:3]},
		"to_symbol":   {pair[3:]},
		"outputsize":  {"full"},
	})
	if err != nil {
		return nil, err
	}
	p.annotate(FunctionFXDaily, pair, "")
	return p, nil
}

func (c *Client) fetchCrypto(ctx context.Context, symbol, market string) (Payload, error) {
	p, err := c.request(ctx, FunctionCryptoDaily, url.Values{
		"symbol": {symbol},
		"market": {market},
	})
	if err != nil {
		return nil, err
	}
	p.annotate(FunctionCryptoDaily, symbol, market)
	return p, nil
}

// request performs one API call with throttling and retries on rate limits.
func (c *Client) request(ctx context.Context, function string, params url.Values) (Payload, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("function", function)
	query.Set("apikey", c.apiKey)
	endpoint := c.baseURL + "?" + query.Encode()

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		p, status, err := c.do(ctx, function, endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			observability.RecordAPIRetry("transport")
			c.logger.Printf("[alphavantage] %s attempt %d/%d: %v", function, attempt, c.maxRetries, err)
			continue
		}

		if msg, ok := p.text(keyInformation); ok {
			return nil, fmt.Errorf("%w: %s", ErrInformation, msg)
		}
		if status == http.StatusTooManyRequests || p.has(keyNote) {
			msg, _ := p.text(keyNote)
			lastErr = fmt.Errorf("%w: %s", ErrRateLimited, msg)
			observability.RecordAPIRetry("throttled")
			c.logger.Printf("[alphavantage] %s throttled, attempt %d/%d", function, attempt, c.maxRetries)
			continue
		}
		if msg, ok := p.text(keyErrorMessage); ok {
			return nil, fmt.Errorf("%w: %s", ErrAPI, msg)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", status)
		}
		return p, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// do issues a single GET. The URL carries the API key and is kept out of
// returned errors.
func (c *Client) do(ctx context.Context, function, endpoint string) (Payload, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	c.calls.Add(1)
	resp, err := c.client.Do(req)
	if err != nil {
		observability.RecordAPICall(function, "error", time.Since(start).Seconds())
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	observability.RecordAPICall(function, http.StatusText(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			return Payload{}, resp.StatusCode, nil
		}
		return nil, resp.StatusCode, fmt.Errorf("%w: invalid JSON (status %d)", ErrUnexpectedPayload, resp.StatusCode)
	}
	if p == nil {
		p = Payload{}
	}
	return p, resp.StatusCode, nil
}

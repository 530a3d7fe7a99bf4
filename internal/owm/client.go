package owm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/aeris-project/aeris/internal/weather"
)

// ClientConfig carries the tunables for the OpenWeatherMap client.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	Units          string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	RetryAttempts  int
	RetryBackoff   time.Duration
}

// Client fetches current weather for a single city. Transient transport
// failures are retried with linearly increasing backoff; 4xx responses are
// mapped to typed errors and never retried.
type Client struct {
	cfg     ClientConfig
	hc      *http.Client
	limiter *RateLimiter
	log     zerolog.Logger
}

// NewClient builds a client whose connect timeout is strictly shorter than
// its total request timeout.
func NewClient(cfg ClientConfig, limiter *RateLimiter, log zerolog.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConnsPerHost: 10,
	}

	return &Client{
		cfg: cfg,
		hc: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		limiter: limiter,
		log:     log,
	}
}

// Current fetches the current weather for a city by name.
func (c *Client) Current(ctx context.Context, city string) (*weather.Measurement, error) {
	params := url.Values{}
	params.Set("q", city)
	return c.fetch(ctx, params, city)
}

// CurrentByID fetches the current weather for a city by its upstream ID.
func (c *Client) CurrentByID(ctx context.Context, cityID int) (*weather.Measurement, error) {
	params := url.Values{}
	params.Set("id", strconv.Itoa(cityID))
	return c.fetch(ctx, params, strconv.Itoa(cityID))
}

// linearBackOff waits base*attempt between retries, matching the upstream
// client's published retry policy.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

func (c *Client) fetch(ctx context.Context, params url.Values, city string) (*weather.Measurement, error) {
	params.Set("appid", c.cfg.APIKey)
	params.Set("units", c.cfg.Units)

	// Admission is checked once per fetch; retried attempts still record a
	// window slot because the request was actually sent.
	if err := c.limiter.Reserve(ctx); err != nil {
		return nil, err
	}

	var result *weather.Measurement
	attempt := 0

	op := func() error {
		attempt++
		if attempt > 1 {
			c.limiter.Record()
		}

		c.log.Debug().Str("city", city).Int("attempt", attempt).Msg("making API request")

		m, err := c.doRequest(ctx, params, city)
		if err != nil {
			return err
		}
		result = m
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: c.cfg.RetryBackoff}, uint64(c.cfg.RetryAttempts-1)),
		ctx,
	)

	if err := backoff.Retry(op, policy); err != nil {
		if isTyped(err) {
			return nil, err
		}
		c.log.Warn().Str("city", city).Int("attempts", attempt).Err(err).Msg("request failed after all retry attempts")
		return nil, &TransportError{Attempts: attempt, Err: err}
	}

	return result, nil
}

func (c *Client) doRequest(ctx context.Context, params url.Values, city string) (*weather.Measurement, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		// Transport-level failure (timeout, connection error): retryable.
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var payload weather.CurrentResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, backoff.Permanent(&MalformedResponseError{City: city, Err: err})
		}
		m := weather.FromCurrentResponse(&payload, time.Now().UTC())
		if err := m.Validate(); err != nil {
			return nil, backoff.Permanent(&MalformedResponseError{City: city, Err: err})
		}
		return m, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(fmt.Errorf("%w: %q", ErrCityNotFound, city))
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, backoff.Permanent(ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, backoff.Permanent(ErrRateLimited)
	default:
		c.log.Warn().Str("city", city).Int("status_code", resp.StatusCode).Msg("API request failed")
		return nil, backoff.Permanent(&UpstreamError{StatusCode: resp.StatusCode, Status: resp.Status})
	}
}

// UsageStats exposes the limiter's window occupancy for the admin API.
func (c *Client) UsageStats() UsageStats {
	return c.limiter.Stats()
}

func isTyped(err error) bool {
	var upstream *UpstreamError
	var malformed *MalformedResponseError
	return errors.Is(err, ErrCityNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrRateLimited) ||
		errors.As(err, &upstream) ||
		errors.As(err, &malformed)
}

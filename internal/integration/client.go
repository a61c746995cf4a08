package integration

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"agrimarket/internal/cache"
	"agrimarket/internal/metrics"
)

var (
	// ErrUpstream means a provider could not be reached or answered non-2xx.
	ErrUpstream     = errors.New("upstream service unavailable")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	providerWeather = "weather"
	providerGeocode = "geocode"
	providerChat    = "chat"
	providerQuality = "quality"
)

// Options are shared by every provider client.
type Options struct {
	Timeout  time.Duration
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.Cache == nil {
		o.Cache = cache.Nop{}
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 10 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func newRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "agrimarket/1.0")
}

// body records the call outcome and returns the payload of a 2xx response.
func body(provider string, resp *resty.Response, err error) ([]byte, error) {
	if err != nil {
		metrics.RecordUpstream(provider, false)
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, provider, err)
	}
	if !resp.IsSuccess() {
		metrics.RecordUpstream(provider, false)
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUpstream, provider, resp.StatusCode())
	}
	metrics.RecordUpstream(provider, true)
	return resp.Body(), nil
}

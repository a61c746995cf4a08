package integration

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Location selects the forecast point: coordinates win over City.
type Location struct {
	Lat  *float64
	Lon  *float64
	City string
}

func (l Location) valid() bool {
	if l.Lat != nil && l.Lon != nil {
		return *l.Lat >= -90 && *l.Lat <= 90 && *l.Lon >= -180 && *l.Lon <= 180
	}
	return strings.TrimSpace(l.City) != ""
}

func (l Location) cacheKey() string {
	if l.Lat != nil && l.Lon != nil {
		return fmt.Sprintf("weather:%.2f,%.2f", *l.Lat, *l.Lon)
	}
	return "weather:city:" + strings.ToLower(strings.TrimSpace(l.City))
}

type Weather struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    int64   `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Description string  `json:"description"`
	Icon        string  `json:"icon,omitempty"`
	Fallback    bool    `json:"fallback,omitempty"`
}

type WeatherClient struct {
	http   *resty.Client
	apiKey string
	opts   Options
}

func NewWeatherClient(baseURL, apiKey string, opts Options) *WeatherClient {
	opts = opts.withDefaults()
	return &WeatherClient{http: newRestyClient(baseURL, opts.Timeout), apiKey: apiKey, opts: opts}
}

// Current returns current conditions. Provider failures yield a fallback
// report with Fallback set rather than an error.
func (c *WeatherClient) Current(ctx context.Context, loc Location) (*Weather, error) {
	if !loc.valid() {
		return nil, fmt.Errorf("%w: lat/lon or city is required", ErrInvalidInput)
	}

	key := loc.cacheKey()
	var cached Weather
	if ok, err := c.opts.Cache.Get(ctx, key, &cached); err != nil {
		c.opts.Logger.Warn("weather cache read failed", zap.Error(err))
	} else if ok {
		return &cached, nil
	}

	w, err := c.fetch(ctx, loc)
	if err != nil {
		c.opts.Logger.Warn("weather provider failed, serving fallback", zap.String("key", key), zap.Error(err))
		return fallbackWeather(loc), nil
	}

	if err := c.opts.Cache.Set(ctx, key, w, c.opts.CacheTTL); err != nil {
		c.opts.Logger.Warn("weather cache write failed", zap.Error(err))
	}
	return w, nil
}

func (c *WeatherClient) fetch(ctx context.Context, loc Location) (*Weather, error) {
	params := map[string]string{"units": "metric", "appid": c.apiKey}
	if loc.Lat != nil && loc.Lon != nil {
		params["lat"] = strconv.FormatFloat(*loc.Lat, 'f', -1, 64)
		params["lon"] = strconv.FormatFloat(*loc.Lon, 'f', -1, 64)
	} else {
		params["q"] = strings.TrimSpace(loc.City)
	}

	resp, err := c.http.R().SetContext(ctx).SetQueryParams(params).Get("/weather")
	b, err := body(providerWeather, resp, err)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(b) || !gjson.GetBytes(b, "main.temp").Exists() {
		return nil, fmt.Errorf("%w: weather payload missing main.temp", ErrUpstream)
	}

	res := gjson.ParseBytes(b)
	return &Weather{
		Location:    res.Get("name").String(),
		Temperature: res.Get("main.temp").Float(),
		FeelsLike:   res.Get("main.feels_like").Float(),
		Humidity:    res.Get("main.humidity").Int(),
		WindSpeed:   res.Get("wind.speed").Float(),
		Description: res.Get("weather.0.description").String(),
		Icon:        res.Get("weather.0.icon").String(),
	}, nil
}

func fallbackWeather(loc Location) *Weather {
	name := strings.TrimSpace(loc.City)
	if name == "" {
		name = "your area"
	}
	return &Weather{
		Location:    name,
		Temperature: 25,
		FeelsLike:   25,
		Humidity:    60,
		WindSpeed:   2,
		Description: "weather data temporarily unavailable",
		Fallback:    true,
	}
}

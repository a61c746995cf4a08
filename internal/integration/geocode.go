package integration

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

type Place struct {
	DisplayName string `json:"display_name"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
}

type GeocodeClient struct {
	http *resty.Client
	opts Options
}

func NewGeocodeClient(baseURL string, opts Options) *GeocodeClient {
	opts = opts.withDefaults()
	return &GeocodeClient{http: newRestyClient(baseURL, opts.Timeout), opts: opts}
}

// Reverse resolves coordinates to a place name. Unlike weather there is no
// fallback: failures surface as ErrUpstream.
func (c *GeocodeClient) Reverse(ctx context.Context, lat, lon float64) (*Place, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}

	key := fmt.Sprintf("geocode:%.4f,%.4f", lat, lon)
	var cached Place
	if ok, err := c.opts.Cache.Get(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format": "jsonv2",
			"lat":    strconv.FormatFloat(lat, 'f', -1, 64),
			"lon":    strconv.FormatFloat(lon, 'f', -1, 64),
		}).
		Get("/reverse")
	b, err := body(providerGeocode, resp, err)
	if err != nil {
		return nil, err
	}

	res := gjson.ParseBytes(b)
	if !res.Get("display_name").Exists() {
		return nil, fmt.Errorf("%w: geocode: %s", ErrUpstream, res.Get("error").String())
	}

	addr := res.Get("address")
	city := addr.Get("city").String()
	for _, alt := range []string{"town", "village", "county"} {
		if city != "" {
			break
		}
		city = addr.Get(alt).String()
	}

	place := &Place{
		DisplayName: res.Get("display_name").String(),
		City:        city,
		State:       addr.Get("state").String(),
		Country:     addr.Get("country").String(),
		Postcode:    addr.Get("postcode").String(),
	}
	if err := c.opts.Cache.Set(ctx, key, place, c.opts.CacheTTL); err != nil {
		c.opts.Logger.Warn("geocode cache write failed", zap.Error(err))
	}
	return place, nil
}

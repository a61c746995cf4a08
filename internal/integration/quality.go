package integration

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const maxImageSize = 10 << 20

type QualityReport struct {
	Grade      string   `json:"grade"`
	Confidence float64  `json:"confidence"`
	Defects    []string `json:"defects"`
	Freshness  string   `json:"freshness,omitempty"`
	MimeType   string   `json:"mime_type"`
}

type QualityClient struct {
	http *resty.Client
	opts Options
}

func NewQualityClient(baseURL string, opts Options) *QualityClient {
	opts = opts.withDefaults()
	return &QualityClient{http: newRestyClient(baseURL, opts.Timeout), opts: opts}
}

// Analyze forwards a produce photo to the inference service. Only images are
// accepted, detected from content rather than the filename.
func (c *QualityClient) Analyze(ctx context.Context, filename string, data []byte) (*QualityReport, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidInput, maxImageSize)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: %s is not an image", ErrInvalidInput, mt.String())
	}
	if filename == "" {
		filename = "upload" + mt.Extension()
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(data)).
		SetMultipartFormData(map[string]string{"content_type": mt.String()}).
		Post("/analyze")
	b, err := body(providerQuality, resp, err)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(b) {
		return nil, fmt.Errorf("%w: quality service returned invalid JSON", ErrUpstream)
	}

	res := gjson.ParseBytes(b)
	report := &QualityReport{
		Grade:      res.Get("grade").String(),
		Confidence: res.Get("confidence").Float(),
		Freshness:  res.Get("freshness").String(),
		MimeType:   mt.String(),
		Defects:    []string{},
	}
	for _, d := range res.Get("defects").Array() {
		report.Defects = append(report.Defects, d.String())
	}
	return report, nil
}

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	maxHistory = 10

	farmingPrompt = "You are an agricultural assistant for farmers and produce buyers. " +
		"Answer questions about crops, soil, irrigation, pests, weather impact, market prices and farm practices. " +
		"Keep answers short and practical. Politely decline questions unrelated to agriculture."

	schemesPrompt = "You list government agricultural schemes. Reply with only a JSON array, no prose. " +
		`Each element is an object with keys "name", "description", "eligibility", "benefits" and "link".`

	fallbackAnswer = "The farming assistant is unavailable right now. Please try again in a few minutes, " +
		"or contact your local agricultural extension office for urgent advice."
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Answer struct {
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback,omitempty"`
}

type Scheme struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Eligibility string `json:"eligibility,omitempty"`
	Benefits    string `json:"benefits,omitempty"`
	Link        string `json:"link,omitempty"`
}

type SchemeList struct {
	Schemes  []Scheme `json:"schemes"`
	Fallback bool     `json:"fallback,omitempty"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type ChatClient struct {
	http  *resty.Client
	model string
	opts  Options
}

func NewChatClient(baseURL, apiKey, model string, opts Options) *ChatClient {
	opts = opts.withDefaults()
	c := newRestyClient(baseURL, opts.Timeout)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &ChatClient{http: c, model: model, opts: opts}
}

// Ask answers a farming question given the prior conversation.
func (c *ChatClient) Ask(ctx context.Context, question string, history []Message) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}

	messages := []Message{{Role: "system", Content: farmingPrompt}}
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	for _, m := range history {
		if (m.Role == "user" || m.Role == "assistant") && strings.TrimSpace(m.Content) != "" {
			messages = append(messages, m)
		}
	}
	messages = append(messages, Message{Role: "user", Content: question})

	reply, err := c.complete(ctx, messages, 0.7, 500)
	if err != nil {
		c.opts.Logger.Warn("chat provider failed, serving fallback", zap.Error(err))
		return &Answer{Reply: fallbackAnswer, Fallback: true}, nil
	}
	return &Answer{Reply: reply}, nil
}

// Schemes asks the model for schemes matching a state and category.
func (c *ChatClient) Schemes(ctx context.Context, state, category string) (*SchemeList, error) {
	state, category = strings.TrimSpace(state), strings.TrimSpace(category)
	key := "schemes:" + strings.ToLower(state) + ":" + strings.ToLower(category)

	var cached SchemeList
	if ok, err := c.opts.Cache.Get(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}

	q := "List current government schemes for farmers"
	if state != "" {
		q += " in " + state
	}
	if category != "" {
		q += " related to " + category
	}
	messages := []Message{{Role: "system", Content: schemesPrompt}, {Role: "user", Content: q + "."}}

	reply, err := c.complete(ctx, messages, 0.2, 1200)
	if err != nil {
		c.opts.Logger.Warn("schemes lookup failed, serving fallback", zap.Error(err))
		return &SchemeList{Schemes: fallbackSchemes(), Fallback: true}, nil
	}

	schemes, err := parseSchemes(reply)
	if err != nil {
		c.opts.Logger.Warn("schemes reply unparsable, serving fallback", zap.Error(err))
		return &SchemeList{Schemes: fallbackSchemes(), Fallback: true}, nil
	}

	list := &SchemeList{Schemes: schemes}
	if err := c.opts.Cache.Set(ctx, key, list, c.opts.CacheTTL); err != nil {
		c.opts.Logger.Warn("schemes cache write failed", zap.Error(err))
	}
	return list, nil
}

func (c *ChatClient) complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(chatRequest{Model: c.model, Messages: messages, Temperature: temperature, MaxTokens: maxTokens}).
		Post("/chat/completions")
	b, err := body(providerChat, resp, err)
	if err != nil {
		return "", err
	}

	content := strings.TrimSpace(gjson.GetBytes(b, "choices.0.message.content").String())
	if content == "" {
		return "", fmt.Errorf("%w: chat reply has no content", ErrUpstream)
	}
	return content, nil
}

// parseSchemes extracts the JSON array from a model reply, tolerating code
// fences and surrounding prose.
func parseSchemes(reply string) ([]Scheme, error) {
	start, end := strings.Index(reply, "["), strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON array in reply")
	}
	raw := reply[start : end+1]
	if !gjson.Valid(raw) {
		return nil, errors.New("invalid JSON array in reply")
	}

	var schemes []Scheme
	if err := json.Unmarshal([]byte(raw), &schemes); err != nil {
		return nil, fmt.Errorf("decode schemes: %w", err)
	}
	kept := schemes[:0]
	for _, s := range schemes {
		if strings.TrimSpace(s.Name) != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New("reply lists no schemes")
	}
	return kept, nil
}

func fallbackSchemes() []Scheme {
	return []Scheme{
		{
			Name:        "PM-KISAN",
			Description: "Income support paid directly to farmer families in three yearly instalments.",
			Eligibility: "Landholding farmer families",
			Benefits:    "Rs 6,000 per year",
			Link:        "https://pmkisan.gov.in",
		},
		{
			Name:        "Pradhan Mantri Fasal Bima Yojana",
			Description: "Crop insurance against yield losses from natural calamities, pests and disease.",
			Eligibility: "Farmers growing notified crops in notified areas",
			Benefits:    "Low premium crop insurance cover",
			Link:        "https://pmfby.gov.in",
		},
		{
			Name:        "Kisan Credit Card",
			Description: "Short-term credit for cultivation and allied activities at concessional interest.",
			Eligibility: "Farmers, tenant farmers and sharecroppers",
			Benefits:    "Revolving credit with interest subvention",
			Link:        "https://www.myscheme.gov.in/schemes/kcc",
		},
		{
			Name:        "Soil Health Card Scheme",
			Description: "Soil testing with crop-wise nutrient recommendations.",
			Eligibility: "All farmers",
			Benefits:    "Free soil testing and advisory",
			Link:        "https://soilhealth.dac.gov.in",
		},
	}
}

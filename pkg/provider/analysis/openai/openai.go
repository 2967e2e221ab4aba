// Package openai provides an analysis provider backed by the OpenAI API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/callsight/callsight/pkg/provider/analysis"
)

// Compile-time assertion that Provider implements analysis.Provider.
var _ analysis.Provider = (*Provider)(nil)

// Provider implements analysis.Provider using the OpenAI chat completions API.
type Provider struct {
	client           oai.Client
	model            string
	temperature      float64
	sanitizeAttempts int
}

// config holds optional configuration for the provider.
type config struct {
	baseURL          string
	organization     string
	timeout          time.Duration
	temperature      float64
	sanitizeAttempts int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithTemperature sets the sampling temperature. Defaults to 0 (greedy),
// which keeps the structured output stable across runs.
func WithTemperature(t float64) Option {
	return func(c *config) {
		c.temperature = t
	}
}

// WithSanitizeAttempts caps the JSON brace-trim recovery passes applied to
// model output before the response is declared unparseable.
func WithSanitizeAttempts(n int) Option {
	return func(c *config) {
		c.sanitizeAttempts = n
	}
}

// New constructs a new OpenAI analysis Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{
		client:           client,
		model:            model,
		temperature:      cfg.temperature,
		sanitizeAttempts: cfg.sanitizeAttempts,
	}, nil
}

// Analyze implements analysis.Provider.
func (p *Provider) Analyze(ctx context.Context, req analysis.Request) (*analysis.Report, error) {
	if req.Transcript == "" {
		return nil, fmt.Errorf("openai: transcript must not be empty")
	}

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(analysis.SystemPrompt),
			oai.UserMessage(analysis.BuildUserPrompt(req)),
		},
	}
	if p.temperature != 0 {
		params.Temperature = param.NewOpt(p.temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &analysis.ServiceError{Provider: "openai", Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return nil, &analysis.ServiceError{Provider: "openai", Message: "empty choices in response"}
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return nil, &analysis.ServiceError{Provider: "openai", Message: "empty completion"}
	}

	return analysis.DecodeReport("openai", content, p.sanitizeAttempts)
}

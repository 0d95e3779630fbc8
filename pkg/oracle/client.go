// Package oracle wraps the Anthropic API behind the narrow prompt → text
// interface the adjudication pipeline consumes. The pipeline has no control
// over oracle availability or output quality, only over how the returned
// text is interpreted downstream.
package oracle

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is the reasoning oracle interface used by every pipeline stage.
type Client interface {
	// Complete sends system instructions and a user prompt and returns the
	// oracle's raw text response.
	Complete(ctx context.Context, system, user string) (string, error)
}

const (
	defaultMaxTokens = 1024
	defaultRPS       = 2.0
)

// Option configures the SDK-backed client.
type Option func(*sdkClient)

// WithMaxTokens overrides the per-request output token cap.
func WithMaxTokens(n int64) Option {
	return func(c *sdkClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithRateLimit overrides the client-side requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *sdkClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// NewClient creates an oracle client backed by the Anthropic SDK.
func NewClient(apiKey, model string, opts ...Option) Client {
	c := &sdkClient{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: defaultMaxTokens,
		limiter:   rate.NewLimiter(rate.Limit(defaultRPS), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *sdkClient) Complete(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "oracle: rate limit wait")
	}

	// Temperature 0: adjudication wants the most deterministic output the
	// model can give.
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: sdk.Float(0),
		System: []sdk.TextBlockParam{
			{Text: system},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "oracle: create message")
	}

	text := collectText(msg)

	zap.L().Debug("oracle: completion",
		zap.String("model", c.model),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
		zap.Int("response_len", len(text)),
	)

	return text, nil
}

// collectText concatenates all text content blocks from a response.
func collectText(msg *sdk.Message) string {
	if msg == nil {
		return ""
	}
	var parts []string
	for _, block := range msg.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

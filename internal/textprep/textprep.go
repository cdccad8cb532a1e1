// Package textprep prepares Arabic input text before it is sent to a speech
// backend.
package textprep

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Preparer rewrites text ahead of synthesis.
type Preparer interface {
	Prepare(ctx context.Context, text string) (string, error)
}

// Noop returns the text unchanged.
type Noop struct{}

func (Noop) Prepare(_ context.Context, text string) (string, error) { return text, nil }

const diacritizeSystem = `You add full Arabic diacritics (tashkeel) to the text you are given.
Return only the diacritized text. Do not translate, summarise, reorder or add any words.
Leave non-Arabic words, digits and punctuation exactly as they are.`

// AnthropicDiacritizer asks a Claude model to add tashkeel so the speech
// model pronounces ambiguous words correctly.
type AnthropicDiacritizer struct {
	client anthropic.Client
	model  string
}

func NewAnthropicDiacritizer(apiKey, model string, opts ...option.RequestOption) *AnthropicDiacritizer {
	if model == "" {
		model = "claude-3-haiku-20240307"
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicDiacritizer{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (d *AnthropicDiacritizer) Prepare(ctx context.Context, text string) (string, error) {
	resp, err := d.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(d.model),
		MaxTokens: 4096,
		System:    []anthropic.TextBlockParam{{Text: diacritizeSystem}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic diacritize: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("anthropic diacritize: empty response")
	}
	return out, nil
}

// Lenient wraps a Preparer so that any failure falls back to the original
// text. Diacritics improve pronunciation but are never worth failing a
// request over.
type Lenient struct {
	Next Preparer
}

func (l Lenient) Prepare(ctx context.Context, text string) (string, error) {
	out, err := l.Next.Prepare(ctx, text)
	if err != nil {
		slog.Warn("text preparation failed, using raw text", "error", err)
		return text, nil
	}
	return out, nil
}

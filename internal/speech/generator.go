// Package speech turns Arabic text into a playable WAV clip: it validates the
// request, builds the performance prompt, calls the configured TTS backend
// under the quota retry policy and wraps the returned PCM.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nikhilbhutani/atheer/internal/audio"
	"github.com/nikhilbhutani/atheer/internal/retry"
	"github.com/nikhilbhutani/atheer/internal/textprep"
	"github.com/nikhilbhutani/atheer/internal/tts"
	"github.com/nikhilbhutani/atheer/internal/voices"
)

const (
	DefaultMaxChars = 1200
	DefaultTone     = "natural"
	DefaultRate     = 1.0
	DefaultPitch    = 1.0

	MinRate = 0.25
	MaxRate = 4.0

	newsAnchorTone  = "news anchor"
	newsAnchorStyle = "a professional Arabic news anchor, formal, authoritative, with clear articulation."
)

var (
	ErrEmptyText    = errors.New("text is empty")
	ErrUnknownVoice = errors.New("unknown voice")
	ErrInvalidRate  = errors.New("rate out of range")
	ErrNoAudio      = tts.ErrNoAudioData
)

type Request struct {
	Text  string
	Voice voices.VoiceName
	Tone  string
	Rate  float64
	// Pitch is recorded with the request but not sent to the model.
	Pitch float64
}

type Clip struct {
	WAV        []byte
	Duration   float64
	SampleRate int
	Voice      voices.VoiceName
	Text       string
}

type Generator struct {
	provider tts.Provider
	policy   retry.Policy
	preparer textprep.Preparer
	maxChars int
}

type Option func(*Generator)

// WithPreparer runs p over the text after truncation and before prompting.
func WithPreparer(p textprep.Preparer) Option {
	return func(g *Generator) { g.preparer = p }
}

func WithMaxChars(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxChars = n
		}
	}
}

func NewGenerator(provider tts.Provider, policy retry.Policy, opts ...Option) *Generator {
	g := &Generator{
		provider: provider,
		policy:   policy,
		preparer: textprep.Noop{},
		maxChars: DefaultMaxChars,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Normalize applies defaults and validation without calling the backend.
// The returned request has trimmed, truncated text.
func (g *Generator) Normalize(req Request) (Request, error) {
	req.Text = Truncate(strings.TrimSpace(req.Text), g.maxChars)
	if req.Text == "" {
		return req, ErrEmptyText
	}
	if req.Voice == "" {
		req.Voice = voices.Default().Voice
	}
	if !voices.ValidVoice(string(req.Voice)) {
		return req, fmt.Errorf("%w: %q", ErrUnknownVoice, req.Voice)
	}
	if strings.TrimSpace(req.Tone) == "" {
		req.Tone = DefaultTone
	}
	if req.Rate == 0 {
		req.Rate = DefaultRate
	}
	if req.Rate < MinRate || req.Rate > MaxRate {
		return req, fmt.Errorf("%w: %v (want %v..%v)", ErrInvalidRate, req.Rate, MinRate, MaxRate)
	}
	if req.Pitch == 0 {
		req.Pitch = DefaultPitch
	}
	return req, nil
}

// Generate produces one clip. Quota failures are retried per the policy; the
// final error is returned unchanged once the budget is spent.
func (g *Generator) Generate(ctx context.Context, req Request) (*Clip, error) {
	req, err := g.Normalize(req)
	if err != nil {
		return nil, err
	}

	text, err := g.preparer.Prepare(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("prepare text: %w", err)
	}

	sreq := tts.SynthesisRequest{
		Prompt: BuildPrompt(text, req.Tone, req.Rate),
		Text:   text,
		Voice:  req.Voice,
		Speed:  req.Rate,
	}

	start := time.Now()
	res, err := retry.Do(ctx, g.policy, func(ctx context.Context) (*tts.SynthesisResult, error) {
		return g.provider.Synthesize(ctx, sreq)
	})
	if err != nil {
		return nil, err
	}
	if len(res.PCM) == 0 {
		return nil, ErrNoAudio
	}

	rate := res.SampleRate
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}
	wav, duration := audio.EncodeWAV(res.PCM, rate)

	slog.Info("speech generated",
		"provider", g.provider.Name(),
		"voice", req.Voice,
		"chars", utf8.RuneCountInString(req.Text),
		"duration", duration,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &Clip{
		WAV:        wav,
		Duration:   duration,
		SampleRate: rate,
		Voice:      req.Voice,
		Text:       req.Text,
	}, nil
}

// BuildPrompt renders the performance instruction sent with the text.
func BuildPrompt(text, tone string, rate float64) string {
	style := tone
	if strings.EqualFold(strings.TrimSpace(tone), newsAnchorTone) {
		style = newsAnchorStyle
	}
	return fmt.Sprintf("Perform the following Arabic text as a professional voice artist. Style: %s. Speed: %sx. Text: %s",
		style, strconv.FormatFloat(rate, 'f', -1, 64), text)
}

// Truncate keeps at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

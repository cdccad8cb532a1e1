package tts

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/genai"

	"github.com/nikhilbhutani/atheer/internal/audio"
)

// GeminiTTSConfig holds configuration for the Gemini speech backend.
type GeminiTTSConfig struct {
	APIKey     string
	BaseURL    string // optional, overrides the Gemini API endpoint
	Model      string // default: "gemini-2.5-flash-preview-tts"
	SampleRate int    // used when the response does not declare a rate
	Timeout    time.Duration
}

// GeminiTTS synthesizes speech through the Gemini generateContent API with
// audio output.
type GeminiTTS struct {
	client *genai.Client
	cfg    GeminiTTSConfig
}

// NewGeminiTTS creates a GeminiTTS with defaults applied.
func NewGeminiTTS(cfg GeminiTTSConfig) (*GeminiTTS, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash-preview-tts"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiTTS{client: client, cfg: cfg}, nil
}

func (g *GeminiTTS) Name() string { return "gemini-tts" }

// Synthesize sends the prompt and returns the raw PCM of the first
// candidate's first part.
func (g *GeminiTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: string(req.Voice)},
			},
		},
	})
	if err != nil {
		return nil, g.wrapError(err)
	}

	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, ErrNoAudioData
	}
	return &SynthesisResult{
		PCM:        blob.Data,
		SampleRate: rateFromMimeType(blob.MIMEType, g.cfg.SampleRate),
	}, nil
}

// wrapError turns SDK API errors into *APIError so the retry layer can see
// the HTTP status.
func (g *GeminiTTS) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return g.apiError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return g.apiError(*apiErrPtr)
	}
	return fmt.Errorf("gemini tts request: %w", err)
}

func (g *GeminiTTS) apiError(e genai.APIError) *APIError {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.Code)
	}
	return &APIError{
		Provider:   g.Name(),
		StatusCode: e.Code,
		Status:     status,
		Message:    e.Message,
	}
}

func firstInlineData(r *genai.GenerateContentResponse) *genai.Blob {
	if r == nil || len(r.Candidates) == 0 {
		return nil
	}
	c := r.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 || c.Content.Parts[0] == nil {
		return nil
	}
	return c.Content.Parts[0].InlineData
}

// rateFromMimeType reads the rate parameter of e.g.
// "audio/L16;codec=pcm;rate=24000".
func rateFromMimeType(mimeType string, fallback int) int {
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return fallback
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return fallback
	}
	return rate
}

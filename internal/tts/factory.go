package tts

import (
	"fmt"

	"github.com/nikhilbhutani/atheer/internal/config"
)

// NewFromConfig builds the backend selected by TTS_BACKEND.
func NewFromConfig(cfg config.TTSConfig) (Provider, error) {
	switch cfg.Backend {
	case "", "gemini":
		g, err := NewGeminiTTS(GeminiTTSConfig{
			APIKey:     cfg.GeminiKey,
			BaseURL:    cfg.GeminiBaseURL,
			Model:      cfg.GeminiModel,
			SampleRate: cfg.SampleRate,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	case "openai":
		return NewOpenAITTS(OpenAITTSConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}), nil
	case "local":
		return NewLocalTTS(LocalTTSConfig{
			PiperBinPath: cfg.LocalBinPath,
			ModelPath:    cfg.LocalModel,
			SampleRate:   cfg.LocalRate,
		}), nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.Backend)
	}
}

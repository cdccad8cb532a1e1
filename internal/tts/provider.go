package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikhilbhutani/atheer/internal/voices"
)

// SynthesisRequest holds the parameters for one text-to-speech call.
// Prompt carries the full performance instruction for models that take one;
// Text is the bare utterance for backends that only read text.
type SynthesisRequest struct {
	Prompt string           `json:"prompt"`
	Text   string           `json:"text"`
	Voice  voices.VoiceName `json:"voice"`
	Speed  float64          `json:"speed,omitempty"`
}

// SynthesisResult holds raw signed 16-bit little-endian mono PCM.
type SynthesisResult struct {
	PCM        []byte
	SampleRate int
}

// Provider is the interface for text-to-speech backends.
type Provider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
}

// ErrNoAudioData is returned when the backend answered successfully but the
// response carried no audio.
var ErrNoAudioData = errors.New("no audio data received")

// APIError is a non-2xx answer from a speech backend.
type APIError struct {
	Provider   string
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d %s", e.Provider, e.StatusCode, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d %s: %s", e.Provider, e.StatusCode, e.Status, e.Message)
}

// HTTPStatus exposes the upstream status code for error classification.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

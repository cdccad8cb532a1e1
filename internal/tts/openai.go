package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/atheer/internal/voices"
)

// OpenAITTSConfig holds configuration for the OpenAI TTS backend.
type OpenAITTSConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "tts-1"
}

// openAIPCMRate is the fixed rate of OpenAI's "pcm" response format.
const openAIPCMRate = 24000

// voiceMap pairs each prebuilt voice with the closest OpenAI voice.
var voiceMap = map[voices.VoiceName]openai.SpeechVoice{
	voices.Charon: openai.VoiceOnyx,
	voices.Fenrir: openai.VoiceEcho,
	voices.Puck:   openai.VoiceFable,
	voices.Kore:   openai.VoiceNova,
	voices.Zephyr: openai.VoiceShimmer,
}

// OpenAITTS synthesizes speech using OpenAI's speech endpoint in raw PCM
// mode, which matches the framing the WAV encoder expects.
type OpenAITTS struct {
	client *openai.Client
	model  openai.SpeechModel
}

// NewOpenAITTS creates an OpenAITTS with sensible defaults applied.
func NewOpenAITTS(cfg OpenAITTSConfig) *OpenAITTS {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := openai.TTSModel1
	if cfg.Model != "" {
		model = openai.SpeechModel(cfg.Model)
	}
	return &OpenAITTS{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

func (o *OpenAITTS) Name() string { return "openai-tts" }

// Synthesize converts the bare text to PCM. OpenAI has no style prompt, so
// only the speed multiplier carries over.
func (o *OpenAITTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	voice, ok := voiceMap[req.Voice]
	if !ok {
		voice = openai.VoiceAlloy
	}

	sreq := openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	}
	if req.Speed > 0 {
		sreq.Speed = req.Speed
	}

	resp, err := o.client.CreateSpeech(ctx, sreq)
	if err != nil {
		return nil, o.wrapError(err)
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, ErrNoAudioData
	}

	return &SynthesisResult{PCM: pcm, SampleRate: openAIPCMRate}, nil
}

// wrapError turns go-openai's error types into APIError so quota failures
// are classified the same way for every backend.
func (o *OpenAITTS) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:   o.Name(),
			StatusCode: apiErr.HTTPStatusCode,
			Status:     http.StatusText(apiErr.HTTPStatusCode),
			Message:    apiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			Provider:   o.Name(),
			StatusCode: reqErr.HTTPStatusCode,
			Status:     http.StatusText(reqErr.HTTPStatusCode),
			Message:    reqErr.Error(),
		}
	}
	return fmt.Errorf("openai tts: %w", err)
}

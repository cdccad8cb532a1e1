package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// LocalTTSConfig holds configuration for the local Piper TTS backend.
type LocalTTSConfig struct {
	PiperBinPath string // default: "piper"
	ModelPath    string // required: path to the .onnx voice model
	SampleRate   int    // rate of the voice model, default 22050
}

// LocalTTS synthesizes speech using the Piper binary via subprocess.
// Voice selection is fixed by the model file; the voice field is ignored.
type LocalTTS struct {
	cfg LocalTTSConfig
}

// NewLocalTTS creates a LocalTTS backed by a local Piper binary.
func NewLocalTTS(cfg LocalTTSConfig) *LocalTTS {
	if cfg.PiperBinPath == "" {
		cfg.PiperBinPath = "piper"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	return &LocalTTS{cfg: cfg}
}

func (l *LocalTTS) Name() string { return "local-piper" }

// Synthesize pipes text into Piper via stdin and returns the raw PCM it
// writes to stdout.
func (l *LocalTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if l.cfg.ModelPath == "" {
		return nil, fmt.Errorf("piper model path is required (set TTS_LOCAL_PIPER_MODEL)")
	}

	args := []string{"--model", l.cfg.ModelPath, "--output-raw"}
	if req.Speed > 0 && req.Speed != 1 {
		// Piper's length scale is the inverse of a speed multiplier.
		args = append(args, "--length_scale", fmt.Sprintf("%.3f", 1/req.Speed))
	}
	cmd := exec.CommandContext(ctx, l.cfg.PiperBinPath, args...)

	cmd.Stdin = strings.NewReader(req.Text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("piper failed: %w (stderr: %s)", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, ErrNoAudioData
	}

	return &SynthesisResult{
		PCM:        stdout.Bytes(),
		SampleRate: l.cfg.SampleRate,
	}, nil
}

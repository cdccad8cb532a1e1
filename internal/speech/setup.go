package speech

import (
	"time"

	"github.com/nikhilbhutani/atheer/internal/config"
	"github.com/nikhilbhutani/atheer/internal/retry"
	"github.com/nikhilbhutani/atheer/internal/textprep"
	"github.com/nikhilbhutani/atheer/internal/tts"
)

// PolicyFromConfig builds the quota retry policy.
func PolicyFromConfig(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay,
		Increment:    cfg.DelayIncrement,
	}
}

// WorstCase is how long one generation can run when every attempt uses its
// full attemptTimeout and every quota wait is taken.
func WorstCase(p retry.Policy, attemptTimeout time.Duration) time.Duration {
	total := attemptTimeout
	for _, d := range p.Delays() {
		total += d + attemptTimeout
	}
	return total
}

// jobSlack covers text preparation and clip storage around synthesis.
const jobSlack = time.Minute

// JobTimeout is the deadline given to queued speech jobs. An explicit
// JOB_TIMEOUT wins; otherwise it outlasts the whole retry schedule so a long
// quota run still ends as a quota failure.
func JobTimeout(cfg *config.Config) time.Duration {
	if cfg.Queue.JobTimeout > 0 {
		return cfg.Queue.JobTimeout
	}
	return WorstCase(PolicyFromConfig(cfg.Retry), cfg.TTS.Timeout) + jobSlack
}

// NewFromConfig assembles the generator both binaries run: the selected TTS
// backend, the retry policy and, when enabled, diacritization.
func NewFromConfig(cfg *config.Config) (*Generator, error) {
	provider, err := tts.NewFromConfig(cfg.TTS)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithMaxChars(cfg.TTS.MaxTextChars)}
	if cfg.Text.Diacritize {
		d := textprep.NewAnthropicDiacritizer(cfg.Text.AnthropicKey, cfg.Text.AnthropicModel)
		opts = append(opts, WithPreparer(textprep.Lenient{Next: d}))
	}
	return NewGenerator(provider, PolicyFromConfig(cfg.Retry), opts...), nil
}

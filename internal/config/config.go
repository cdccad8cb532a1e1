package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Auth    AuthConfig
	TTS     TTSConfig
	Retry   RetryConfig
	History HistoryConfig
	Preview PreviewConfig
	Text    TextConfig
	Queue   QueueConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret  string
	SessionTTL time.Duration
}

type TTSConfig struct {
	Backend       string // "gemini", "openai" or "local"
	GeminiKey     string
	GeminiBaseURL string
	GeminiModel   string
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	LocalBinPath  string // default: "piper"
	LocalModel    string // required when backend=local
	LocalRate     int
	SampleRate    int
	MaxTextChars  int
	Timeout       time.Duration
}

type RetryConfig struct {
	MaxRetries     int
	InitialDelay   time.Duration
	DelayIncrement time.Duration
}

type HistoryConfig struct {
	Limit   int
	ClipTTL time.Duration
}

type PreviewConfig struct {
	TTL time.Duration
}

type TextConfig struct {
	Diacritize     bool
	AnthropicKey   string
	AnthropicModel string
}

type QueueConfig struct {
	Concurrency int
	JobTimeout  time.Duration // zero: derived from the retry schedule
}

func Load() (*Config, error) {
	var errs []string
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "10"), 64)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RATE_LIMIT_RPS: %v", err))
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           intVar("SERVER_PORT", 8080),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			RateLimitRPS:   rps,
			RateLimitBurst: intVar("RATE_LIMIT_BURST", 20),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("SESSION_JWT_SECRET", ""),
			SessionTTL: durVar("SESSION_TTL", 24*time.Hour),
		},
		TTS: TTSConfig{
			Backend:       getEnv("TTS_BACKEND", "gemini"),
			GeminiKey:     firstEnv("GEMINI_API_KEY", "API_KEY"),
			GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			GeminiModel:   getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("TTS_OPENAI_MODEL", ""),
			LocalBinPath:  getEnv("TTS_LOCAL_PIPER_BIN", "piper"),
			LocalModel:    getEnv("TTS_LOCAL_PIPER_MODEL", ""),
			LocalRate:     intVar("TTS_LOCAL_SAMPLE_RATE", 22050),
			SampleRate:    intVar("TTS_SAMPLE_RATE", 24000),
			MaxTextChars:  intVar("TTS_MAX_TEXT_CHARS", 1200),
			Timeout:       durVar("TTS_TIMEOUT", 120*time.Second),
		},
		Retry: RetryConfig{
			MaxRetries:     intVar("QUOTA_MAX_RETRIES", 5),
			InitialDelay:   durVar("QUOTA_INITIAL_DELAY", 15*time.Second),
			DelayIncrement: durVar("QUOTA_DELAY_INCREMENT", 5*time.Second),
		},
		History: HistoryConfig{
			Limit:   intVar("HISTORY_LIMIT", 50),
			ClipTTL: durVar("CLIP_TTL", 24*time.Hour),
		},
		Preview: PreviewConfig{
			TTL: durVar("PREVIEW_TTL", 24*time.Hour),
		},
		Text: TextConfig{
			Diacritize:     getEnvBool("TEXT_DIACRITIZE", false),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel: getEnv("DIACRITIZE_MODEL", "claude-3-haiku-20240307"),
		},
		Queue: QueueConfig{
			Concurrency: intVar("WORKER_CONCURRENCY", 4),
			JobTimeout:  durVar("JOB_TIMEOUT", 0),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	switch c.TTS.Backend {
	case "gemini":
		if c.TTS.GeminiKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case "openai":
		if c.TTS.OpenAIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case "local":
		if c.TTS.LocalModel == "" {
			missing = append(missing, "TTS_LOCAL_PIPER_MODEL")
		}
	default:
		return fmt.Errorf("unknown TTS_BACKEND %q (want gemini, openai or local)", c.TTS.Backend)
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "SESSION_JWT_SECRET")
	}
	if c.Text.Diacritize && c.Text.AnthropicKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if c.TTS.MaxTextChars <= 0 || c.TTS.SampleRate <= 0 {
		return fmt.Errorf("TTS_MAX_TEXT_CHARS and TTS_SAMPLE_RATE must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("QUOTA_MAX_RETRIES must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

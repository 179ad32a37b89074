package config

import (
	"time"

	"github.com/pitabwire/frame/config"

	"github.com/voicetyped/voicequery/pkg/callback"
)

// VoiceQueryConfig holds configuration for the voicequery service.
type VoiceQueryConfig struct {
	config.ConfigurationDefault

	// Transcription
	ASRBackend          string `envDefault:"openai"                env:"ASR_BACKEND"`
	WhisperModel        string `envDefault:"base"                  env:"WHISPER_MODEL"`
	OpenAIAPIKey        string `envDefault:""                      env:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envDefault:""                      env:"OPENAI_BASE_URL"`
	WhisperCppURL       string `envDefault:"http://127.0.0.1:8080" env:"WHISPERCPP_URL"`
	FasterWhisperBinary string `envDefault:"python3"               env:"FASTER_WHISPER_BINARY"`
	FasterWhisperDevice string `envDefault:"auto"                  env:"FASTER_WHISPER_DEVICE"`
	FFmpegPath          string `envDefault:"ffmpeg"                env:"FFMPEG_PATH"`
	SegmentThresholdMB  int    `envDefault:"30"                    env:"SEGMENT_THRESHOLD_MB"`
	SegmentSeconds      int    `envDefault:"30"                    env:"SEGMENT_SECONDS"`

	// Query generation
	GoogleAPIKey     string `envDefault:""                 env:"GOOGLE_API_KEY"`
	GeneratorBaseURL string `envDefault:""                 env:"GENERATOR_BASE_URL"`
	GeneratorModel   string `envDefault:"gemini-2.0-flash" env:"GENERATOR_MODEL"`
	PromptDir        string `envDefault:""                 env:"PROMPT_DIR"`
	PromptTemplate   string `envDefault:"default"          env:"PROMPT_TEMPLATE"`

	// API
	ExportDir      string `envDefault:"exports" env:"EXPORT_DIR"`
	MaxUploadMB    int    `envDefault:"200"     env:"MAX_UPLOAD_MB"`
	HistoryEnabled bool   `envDefault:"false"   env:"HISTORY_ENABLED"`
	RequireAuth    bool   `envDefault:"false"   env:"REQUIRE_AUTH"`

	// Callbacks
	CallbackSecret          string `envDefault:""      env:"CALLBACK_SECRET"`
	CallbackMaxAttempts     int    `envDefault:"3"     env:"CALLBACK_MAX_ATTEMPTS"`
	CallbackTimeoutSec      int    `envDefault:"10"    env:"CALLBACK_TIMEOUT_SEC"`
	CallbackBackoffSec      int    `envDefault:"1"     env:"CALLBACK_BACKOFF_INITIAL_SEC"`
	CallbackBackoffMax      int    `envDefault:"30"    env:"CALLBACK_BACKOFF_MAX_SEC"`
	CallbackAllowPrivateIPs bool   `envDefault:"false" env:"CALLBACK_ALLOW_PRIVATE_IPS"`
	CBFailThreshold         int    `envDefault:"5"     env:"CB_FAILURE_THRESHOLD"`
	CBResetTimeoutSec       int    `envDefault:"30"    env:"CB_RESET_TIMEOUT_SEC"`
}

// EngineConfig is the base config map handed to every speech backend.
func (c *VoiceQueryConfig) EngineConfig() map[string]string {
	return map[string]string{
		"openai_api_key":        c.OpenAIAPIKey,
		"openai_base_url":       c.OpenAIBaseURL,
		"whispercpp_url":        c.WhisperCppURL,
		"faster_whisper_binary": c.FasterWhisperBinary,
		"faster_whisper_device": c.FasterWhisperDevice,
	}
}

// CallbackConfig builds delivery settings from the callback keys.
func (c *VoiceQueryConfig) CallbackConfig() callback.Config {
	cfg := callback.DefaultConfig()
	cfg.Secret = c.CallbackSecret
	if c.CallbackMaxAttempts > 0 {
		cfg.MaxAttempts = c.CallbackMaxAttempts
	}
	if c.CallbackTimeoutSec > 0 {
		cfg.Timeout = time.Duration(c.CallbackTimeoutSec) * time.Second
	}
	if c.CallbackBackoffSec > 0 {
		cfg.BackoffInitial = time.Duration(c.CallbackBackoffSec) * time.Second
	}
	if c.CallbackBackoffMax > 0 {
		cfg.BackoffMax = time.Duration(c.CallbackBackoffMax) * time.Second
	}
	if c.CBFailThreshold > 0 {
		cfg.FailThreshold = uint32(c.CBFailThreshold)
	}
	if c.CBResetTimeoutSec > 0 {
		cfg.ResetTimeout = time.Duration(c.CBResetTimeoutSec) * time.Second
	}
	return cfg
}

// MaxUploadBytes converts MaxUploadMB to bytes.
func (c *VoiceQueryConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/dictate.json"

const (
	AuthorizationPrompt     = "prompt"
	AuthorizationGranted    = "granted"
	AuthorizationDenied     = "denied"
	AuthorizationRestricted = "restricted"
)

type AppConfig struct {
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	ASR     ASRConfig     `json:"asr" yaml:"asr"`
	Audio   AudioConfig   `json:"audio" yaml:"audio"`
	Session SessionConfig `json:"session" yaml:"session"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type ASRConfig struct {
	APIKey              string   `json:"api_key" yaml:"api_key"`
	Endpoint            string   `json:"endpoint" yaml:"endpoint"`
	Model               string   `json:"model" yaml:"model"`
	SampleRate          int      `json:"sample_rate" yaml:"sample_rate"`
	LanguageHints       []string `json:"language_hints" yaml:"language_hints"`
	SemanticPunctuation *bool    `json:"semantic_punctuation" yaml:"semantic_punctuation"`
	DialTimeoutMs       int      `json:"dial_timeout_ms" yaml:"dial_timeout_ms"`
}

type AudioConfig struct {
	InputDevice string `json:"input_device" yaml:"input_device"`
	Channels    int    `json:"channels" yaml:"channels"`
	// SampleRate 为 0 时使用输入设备的原生采样率
	SampleRate int `json:"sample_rate" yaml:"sample_rate"`
	TapFrames  int `json:"tap_frames" yaml:"tap_frames"`
}

type SessionConfig struct {
	Locale        string `json:"locale" yaml:"locale"`
	PromptText    string `json:"prompt_text" yaml:"prompt_text"`
	Authorization string `json:"authorization" yaml:"authorization"`
	NoticeBuffer  int    `json:"notice_buffer" yaml:"notice_buffer"`
	UIQueueSize   int    `json:"ui_queue_size" yaml:"ui_queue_size"`
}

type MetricsConfig struct {
	Listen string `json:"listen" yaml:"listen"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Logging: LoggingConfig{},
		ASR: ASRConfig{
			Model:         "fun-asr-realtime",
			SampleRate:    16000,
			DialTimeoutMs: 5000,
		},
		Audio: AudioConfig{
			Channels:  1,
			TapFrames: 1024,
		},
		Session: SessionConfig{
			Locale:        "en-US",
			PromptText:    "Say something, I'm listening!",
			Authorization: AuthorizationPrompt,
			NoticeBuffer:  8,
			UIQueueSize:   64,
		},
	}
}

func Load(path string) (*AppConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

func (c *AppConfig) ApplyEnv() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv("LOG_FORMAT")); format != "" {
		c.Logging.Format = format
	}
	if dash := strings.TrimSpace(os.Getenv("DASHSCOPE_API_KEY")); dash != "" {
		c.ASR.APIKey = dash
	}
	if authz := strings.TrimSpace(os.Getenv("ORION_DICTATE_AUTHORIZATION")); authz != "" {
		c.Session.Authorization = authz
	}
	if addr := strings.TrimSpace(os.Getenv("ORION_DICTATE_METRICS_ADDR")); addr != "" {
		c.Metrics.Listen = addr
	}
	if device := strings.TrimSpace(os.Getenv("ORION_DICTATE_INPUT_DEVICE")); device != "" {
		c.Audio.InputDevice = device
	}
}

func (c *AppConfig) Validate() error {
	if c.ASR.SampleRate <= 0 {
		return errors.New("asr.sample_rate must be positive")
	}
	if c.ASR.DialTimeoutMs < 0 {
		return errors.New("asr.dial_timeout_ms must be non-negative")
	}
	if c.Audio.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	if c.Audio.SampleRate < 0 {
		return errors.New("audio.sample_rate must be non-negative")
	}
	if c.Audio.TapFrames <= 0 {
		return errors.New("audio.tap_frames must be positive")
	}
	if c.Session.NoticeBuffer < 0 {
		return errors.New("session.notice_buffer must be non-negative")
	}
	if c.Session.UIQueueSize <= 0 {
		return errors.New("session.ui_queue_size must be positive")
	}

	switch strings.ToLower(strings.TrimSpace(c.Session.Authorization)) {
	case AuthorizationPrompt, AuthorizationGranted, AuthorizationDenied, AuthorizationRestricted:
	default:
		return fmt.Errorf("invalid session.authorization: %s", c.Session.Authorization)
	}

	return nil
}

func (c *AppConfig) ValidateKeys(requireASR bool) error {
	if requireASR && strings.TrimSpace(c.ASR.APIKey) == "" {
		return errors.New("asr api_key is required")
	}
	return nil
}

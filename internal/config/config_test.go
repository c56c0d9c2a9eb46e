package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MergesDefaultsAndEnv(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "dictate.json")
	data := `{
		"logging": {"level": "debug"},
		"audio": {"tap_frames": 2048},
		"session": {"locale": "zh-CN"}
	}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DASHSCOPE_API_KEY", "dash-key")
	t.Setenv("ORION_DICTATE_METRICS_ADDR", ":9102")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected LOG_LEVEL to override config, got %q", cfg.Logging.Level)
	}
	if cfg.Audio.TapFrames != 2048 {
		t.Fatalf("expected tap frames to be 2048, got %d", cfg.Audio.TapFrames)
	}
	if cfg.Session.Locale != "zh-CN" {
		t.Fatalf("expected locale from file, got %q", cfg.Session.Locale)
	}
	if cfg.Session.PromptText != "Say something, I'm listening!" {
		t.Fatalf("expected default prompt to be preserved, got %q", cfg.Session.PromptText)
	}
	if cfg.ASR.APIKey != "dash-key" {
		t.Fatalf("expected ASR api key from env")
	}
	if cfg.Metrics.Listen != ":9102" {
		t.Fatalf("expected metrics addr from env, got %q", cfg.Metrics.Listen)
	}
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "dictate.yaml")
	data := "asr:\n  model: paraformer-realtime-v2\n  language_hints: [en, zh]\nsession:\n  authorization: granted\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ASR.Model != "paraformer-realtime-v2" {
		t.Fatalf("unexpected model %q", cfg.ASR.Model)
	}
	if len(cfg.ASR.LanguageHints) != 2 || cfg.ASR.LanguageHints[1] != "zh" {
		t.Fatalf("unexpected language hints %v", cfg.ASR.LanguageHints)
	}
	if cfg.Session.Authorization != AuthorizationGranted {
		t.Fatalf("unexpected authorization %q", cfg.Session.Authorization)
	}
	if cfg.Audio.TapFrames != 1024 {
		t.Fatalf("expected default tap frames, got %d", cfg.Audio.TapFrames)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ASR.SampleRate != 16000 {
		t.Fatalf("expected default sample rate, got %d", cfg.ASR.SampleRate)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidateKeys(true); err == nil {
		t.Fatalf("expected error when keys are missing")
	}
	if err := cfg.ValidateKeys(false); err != nil {
		t.Fatalf("unexpected error when key not required: %v", err)
	}

	cfg.ASR.APIKey = "asr"
	if err := cfg.ValidateKeys(true); err != nil {
		t.Fatalf("unexpected key validation error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"bad authorization", func(c *AppConfig) { c.Session.Authorization = "maybe" }},
		{"zero tap frames", func(c *AppConfig) { c.Audio.TapFrames = 0 }},
		{"zero channels", func(c *AppConfig) { c.Audio.Channels = 0 }},
		{"negative sample rate", func(c *AppConfig) { c.Audio.SampleRate = -1 }},
		{"zero asr sample rate", func(c *AppConfig) { c.ASR.SampleRate = 0 }},
		{"zero ui queue", func(c *AppConfig) { c.Session.UIQueueSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

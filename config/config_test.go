package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Locale != "zh-CN" {
		t.Errorf("Locale = %q, want zh-CN", cfg.Locale)
	}
	if cfg.UserID != "default" {
		t.Errorf("UserID = %q", cfg.UserID)
	}
	if len(cfg.Content.Topics) != 1 || cfg.Content.Topics[0] != "daily" {
		t.Errorf("Topics = %v", cfg.Content.Topics)
	}
	if cfg.DBPath == "" {
		t.Error("DBPath empty")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := `
locale: en-US
user_id: li
speech:
  key: abc123
  region: eastasia
content:
  topics: [greetings, food]
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Locale != "en-US" || cfg.UserID != "li" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Speech.Key != "abc123" || cfg.Speech.Region != "eastasia" {
		t.Errorf("speech = %+v", cfg.Speech)
	}
	if len(cfg.Content.Topics) != 2 {
		t.Errorf("topics = %v", cfg.Content.Topics)
	}
}

func TestLoadAzureEnvFallback(t *testing.T) {
	t.Setenv("AZURE_SPEECH_KEY", "env-key")
	t.Setenv("AZURE_SPEECH_REGION", "southeastasia")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Speech.Key != "env-key" || cfg.Speech.Region != "southeastasia" {
		t.Errorf("speech = %+v", cfg.Speech)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("locale: en-US\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHUOBA_LOCALE", "ja-JP")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Locale != "ja-JP" {
		t.Errorf("Locale = %q, want env override", cfg.Locale)
	}
}

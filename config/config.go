package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full application configuration: assessment
// credentials, practice content selection, and local paths.
type Config struct {
	UserID string `mapstructure:"user_id"`
	Locale string `mapstructure:"locale"`

	Speech  SpeechConfig  `mapstructure:"speech"`
	Content ContentConfig `mapstructure:"content"`

	DBPath  string `mapstructure:"db_path"`
	Device  string `mapstructure:"device"`
	LogPath string `mapstructure:"log_path"`
}

// SpeechConfig carries the Azure Speech credentials. Either a raw
// subscription key or token-based auth via the same key against the
// STS endpoint.
type SpeechConfig struct {
	Key       string `mapstructure:"key"`
	Region    string `mapstructure:"region"`
	UseTokens bool   `mapstructure:"use_tokens"`
}

type ContentConfig struct {
	Topics     []string `mapstructure:"topics"`
	PerTopic   int      `mapstructure:"per_topic"`
	CorpusPath string   `mapstructure:"corpus_path"`
}

// DefaultDir returns the platform config directory for the app.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "shuoba"), nil
	}
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "shuoba"), nil
}

// Load reads config.yaml from dir (or the default location when dir is
// empty), layers SHUOBA_* environment variables over it, and falls
// back to the standard Azure environment variables for credentials. A
// missing config file is fine; missing credentials are not validated
// here since the headless check mode runs without any.
func Load(dir string) (*Config, error) {
	v := viper.New()

	// Every key needs a default or viper will not bind its SHUOBA_*
	// environment variable.
	v.SetDefault("user_id", "default")
	v.SetDefault("locale", "zh-CN")
	v.SetDefault("speech.key", "")
	v.SetDefault("speech.region", "")
	v.SetDefault("speech.use_tokens", false)
	v.SetDefault("content.topics", []string{"daily"})
	v.SetDefault("content.per_topic", 50)
	v.SetDefault("content.corpus_path", "")
	v.SetDefault("device", "")
	v.SetDefault("log_path", "")

	if dir == "" {
		var err error
		dir, err = DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolving config dir: %w", err)
		}
	}
	v.SetDefault("db_path", filepath.Join(dir, "shuoba.db"))

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("SHUOBA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Standard Azure env vars win over nothing but lose to explicit
	// config, so existing shell setups keep working.
	if cfg.Speech.Key == "" {
		cfg.Speech.Key = os.Getenv("AZURE_SPEECH_KEY")
	}
	if cfg.Speech.Region == "" {
		cfg.Speech.Region = os.Getenv("AZURE_SPEECH_REGION")
	}

	return &cfg, nil
}

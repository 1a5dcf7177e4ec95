package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Config holds all prepd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server" yaml:"server"`
	LLM       LLMConfig       `koanf:"llm" yaml:"llm"`
	Embedding EmbeddingConfig `koanf:"embedding" yaml:"embedding"`
	Storage   StorageConfig   `koanf:"storage" yaml:"storage"`
	Retrieval RetrievalConfig `koanf:"retrieval" yaml:"retrieval"`
	Retry     RetryConfig     `koanf:"retry" yaml:"retry"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
}

type ServerConfig struct {
	Port     int    `koanf:"port" yaml:"port"`
	APIToken string `koanf:"api_token" yaml:"api_token"`
}

type LLMConfig struct {
	BaseURL       string  `koanf:"base_url" yaml:"base_url"`
	APIKey        string  `koanf:"api_key" yaml:"api_key"`
	Model         string  `koanf:"model" yaml:"model"`
	AnalysisModel string  `koanf:"analysis_model" yaml:"analysis_model"`
	Temperature   float32 `koanf:"temperature" yaml:"temperature"`
	MaxTokens     int     `koanf:"max_tokens" yaml:"max_tokens"`
}

type EmbeddingConfig struct {
	ModelDir string `koanf:"model_dir" yaml:"model_dir"`
}

type StorageConfig struct {
	DataDir string `koanf:"data_dir" yaml:"data_dir"`
}

type RetrievalConfig struct {
	TopK            int `koanf:"top_k" yaml:"top_k"`
	MaxContextChars int `koanf:"max_context_chars" yaml:"max_context_chars"`
}

type RetryConfig struct {
	MaxRetries     int           `koanf:"max_retries" yaml:"max_retries"`
	InitialDelay   time.Duration `koanf:"initial_delay" yaml:"initial_delay"`
	Multiplier     float64       `koanf:"multiplier" yaml:"multiplier"`
	MaxDelay       time.Duration `koanf:"max_delay" yaml:"max_delay"`
	RetryAllErrors bool          `koanf:"retry_all_errors" yaml:"retry_all_errors"`
}

type LogConfig struct {
	Level string `koanf:"level" yaml:"level"`
}

// Default returns the built-in configuration defaults.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Server: ServerConfig{
			Port: 4700,
		},
		LLM: LLMConfig{
			BaseURL:       "https://api.siliconflow.cn/v1",
			Model:         "Qwen/Qwen3-8B",
			AnalysisModel: "Qwen/Qwen3-8B",
			Temperature:   0.7,
			MaxTokens:     1024,
		},
		Embedding: EmbeddingConfig{
			ModelDir: filepath.Join(home, ".local", "share", "prepd", "model"),
		},
		Storage: StorageConfig{
			DataDir: filepath.Join(home, ".local", "share", "prepd"),
		},
		Retrieval: RetrievalConfig{
			TopK:            3,
			MaxContextChars: 2000,
		},
		Retry: RetryConfig{
			MaxRetries:     3,
			InitialDelay:   time.Second,
			Multiplier:     2.0,
			MaxDelay:       10 * time.Second,
			RetryAllErrors: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file location,
// honoring XDG_CONFIG_HOME when set.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "prepd", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "prepd", "config.yaml")
}

// Load reads configuration from the given YAML file (missing file is fine),
// then overlays environment variable overrides (PREPD_*). Nested keys use
// underscores: PREPD_SERVER_PORT, PREPD_LLM_API_KEY, and so on.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider("PREPD_", ".", envKeyToPath), nil); err != nil {
		return Config{}, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// envKeyToPath maps PREPD_LLM_API_KEY to "llm.api_key". Only the first
// underscore separates the section; the rest stay joined. Section names
// never contain underscores so this is unambiguous.
func envKeyToPath(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "PREPD_"))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// Save writes the configuration to the given YAML file path,
// creating parent directories as needed.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains usable values.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	if c.Retry.MaxRetries <= 0 {
		return fmt.Errorf("retry.max_retries must be positive")
	}
	if c.Retry.Multiplier < 1.0 {
		return fmt.Errorf("retry.multiplier must be >= 1.0")
	}
	return nil
}

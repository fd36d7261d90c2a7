package config

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration. Values come from a YAML
// file merged with COPILOT_* environment overrides; credential fields
// may reference environment variables as ${VAR}.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Model     ModelConfig     `yaml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Recall    RecallConfig    `yaml:"recall"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ModelConfig struct {
	APIKey    string `yaml:"api_key"`
	Name      string `yaml:"name"`
	MaxTokens int64  `yaml:"max_tokens"`
	MaxRounds int    `yaml:"max_rounds"`
}

// EmbeddingConfig selects the embedding provider. Provider is one of
// "mock" or "openai"; the openai settings are ignored for mock.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int64  `yaml:"cache_size"`

	OpenAI struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
	} `yaml:"openai"`
}

type RecallConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Limit         int     `yaml:"limit"`
	MinSimilarity float32 `yaml:"min_similarity"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Defaults returns a Config with every field at its default value.
func Defaults() Config {
	cfg := Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 60 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Database.Path = "copilot.db"
	cfg.Model.Name = "claude-sonnet-4-20250514"
	cfg.Model.MaxTokens = 4096
	cfg.Model.MaxRounds = 8
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimensions = 384
	cfg.Embedding.CacheSize = 4096
	cfg.Recall.Enabled = true
	cfg.Recall.Limit = 5
	cfg.Recall.MinSimilarity = 0.6
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads the config file at path, applies environment overrides, and
// returns a merged Config. A missing file produces defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} references in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} references with environment variable
// values. Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields resolves environment references in credential
// fields so keys can be stored in config files as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Model.APIKey = expandEnvVars(cfg.Model.APIKey)
	cfg.Embedding.OpenAI.APIKey = expandEnvVars(cfg.Embedding.OpenAI.APIKey)
}

// applyEnvOverrides reads COPILOT_* environment variables and overrides
// the corresponding config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COPILOT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("COPILOT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("COPILOT_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("COPILOT_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("COPILOT_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Embedding.OpenAI.APIKey == "" {
		cfg.Embedding.OpenAI.APIKey = v
	}
	if v := os.Getenv("COPILOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the copilot service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LLMConfig contains the language-model provider configuration
type LLMConfig struct {
	Type           string        `mapstructure:"type"` // openai for now
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"` // per-generation deadline, 0 disables
}

// Normalize applies defaults for unset LLM values.
func (l LLMConfig) Normalize() LLMConfig {
	if strings.TrimSpace(l.Type) == "" {
		l.Type = "openai"
	}
	if l.APIKey == "" {
		l.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if strings.TrimSpace(l.Model) == "" {
		l.Model = "gpt-4o-mini"
	}
	if strings.TrimSpace(l.EmbeddingModel) == "" {
		l.EmbeddingModel = "text-embedding-3-small"
	}
	if l.Temperature == 0 {
		l.Temperature = 0.7
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = 1024
	}
	return l
}

func (l LLMConfig) Validate() error {
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0,2]")
	}
	if l.Timeout < 0 {
		return fmt.Errorf("llm.timeout cannot be negative")
	}
	return nil
}

// VectorConfig contains similarity-search index settings
type VectorConfig struct {
	URL        string `mapstructure:"url"` // e.g. http://localhost:6333
	APIKey     string `mapstructure:"api_key"`
	Collection string `mapstructure:"collection"`
	Dims       uint64 `mapstructure:"dims"`
}

func (v VectorConfig) Validate() error {
	if strings.TrimSpace(v.URL) == "" {
		return fmt.Errorf("vector.url required")
	}
	if strings.TrimSpace(v.Collection) == "" {
		return fmt.Errorf("vector.collection required")
	}
	return nil
}

// RetrievalConfig contains retrieval settings
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

// Normalize applies defaults for unset retrieval values.
func (r RetrievalConfig) Normalize() RetrievalConfig {
	if r.TopK <= 0 {
		r.TopK = 5
	}
	return r
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file and COPILOT_* environment variables
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("llm.type", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 1024)
	viper.SetDefault("llm.timeout", 2*time.Minute)
	viper.SetDefault("retrieval.top_k", 5)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("COPILOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file is optional: everything can come from env/defaults.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.LLM = config.LLM.Normalize()
	config.Retrieval = config.Retrieval.Normalize()

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	return &config
}

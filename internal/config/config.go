package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/onsikgu/famiq/internal/tracing"
)

// Config is the full service configuration, loaded once at startup and
// treated as read-only afterwards.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Chroma  ChromaConfig  `mapstructure:"chroma"`
	RAG     RAGConfig     `mapstructure:"rag"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Prompts PromptsConfig `mapstructure:"prompts"`
	Tracing tracing.Config `mapstructure:"tracing"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port               int           `mapstructure:"port"`
	HealthPort         int           `mapstructure:"health_port"`
	GracefulTimeout    time.Duration `mapstructure:"graceful_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
}

// OpenAIConfig contains settings for the embedding and chat capabilities.
type OpenAIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	DefaultModel   string        `mapstructure:"default_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`
	Timeout        time.Duration `mapstructure:"timeout"`
	// RequestsPerSecond caps outbound OpenAI call rate. Zero disables.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	RateBurst         int     `mapstructure:"rate_burst"`
}

// ChromaConfig contains vector store backend settings.
type ChromaConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	PersistDir    string        `mapstructure:"persist_directory"`
	Collection    string        `mapstructure:"collection_name"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int64         `mapstructure:"max_concurrent"`
	// ExpectedEmbeddingDim guards against model/collection dimension drift.
	// Zero disables the check.
	ExpectedEmbeddingDim int `mapstructure:"expected_embedding_dim"`
}

// RAGConfig contains retrieval and novelty settings.
type RAGConfig struct {
	TopK                int     `mapstructure:"top_k"`
	FamilyTopK          int     `mapstructure:"family_top_k"`
	RecentPerMember     int     `mapstructure:"recent_per_member"`
	MinAnswers          int     `mapstructure:"min_answers"`
	MaxRegeneration     int     `mapstructure:"max_regeneration"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// RedisConfig enables the optional shared embedding cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// PromptsConfig locates the prompt template catalog.
type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from FAMIQ_CONFIG (or config/famiq.yaml when it
// exists), applies FAMIQ_* environment overrides, and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FAMIQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfgPath := os.Getenv("FAMIQ_CONFIG")
	if cfgPath == "" {
		if _, err := os.Stat("config/famiq.yaml"); err == nil {
			cfgPath = "config/famiq.yaml"
		}
	}
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8001)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.graceful_timeout", 15*time.Second)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com")
	v.SetDefault("openai.default_model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.timeout", 30*time.Second)
	v.SetDefault("openai.requests_per_second", 0)
	v.SetDefault("openai.rate_burst", 4)

	v.SetDefault("chroma.host", "localhost")
	v.SetDefault("chroma.port", 8000)
	v.SetDefault("chroma.persist_directory", "./chroma")
	v.SetDefault("chroma.collection_name", "family_qa")
	v.SetDefault("chroma.timeout", 10*time.Second)
	v.SetDefault("chroma.max_concurrent", 16)

	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.family_top_k", 10)
	v.SetDefault("rag.recent_per_member", 3)
	v.SetDefault("rag.min_answers", 3)
	v.SetDefault("rag.max_regeneration", 3)
	v.SetDefault("rag.similarity_threshold", 0.9)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.cache_ttl", time.Hour)

	v.SetDefault("prompts.dir", "prompts")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "famiq")
	v.SetDefault("tracing.otlp_endpoint", "")

	v.SetDefault("logging.level", "info")
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.RAG.SimilarityThreshold <= 0 || c.RAG.SimilarityThreshold > 1 {
		return fmt.Errorf("rag.similarity_threshold must be in (0,1], got %v", c.RAG.SimilarityThreshold)
	}
	if c.RAG.MaxRegeneration < 1 {
		return fmt.Errorf("rag.max_regeneration must be >= 1, got %d", c.RAG.MaxRegeneration)
	}
	if c.RAG.TopK < 1 || c.RAG.FamilyTopK < 1 {
		return fmt.Errorf("rag.top_k and rag.family_top_k must be >= 1")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis.enabled is true")
	}
	if c.OpenAI.RequestsPerSecond < 0 {
		return fmt.Errorf("openai.requests_per_second must be >= 0, got %v", c.OpenAI.RequestsPerSecond)
	}
	return nil
}

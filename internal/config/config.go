package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration, loaded once at startup from
// configs/config.yaml plus APP_* environment overrides.
type Config struct {
	Env         string
	Server      ServerConfig
	DB          DBConfig
	Redis       RedisConfig
	JWT         JWTConfig
	GoogleOAuth GoogleOAuthConfig
	LLM         LLMConfig
	Embedding   EmbeddingConfig
	CacheTTLs   CacheTTLConfig
	RateLimit   RateLimitConfig
	Batch       BatchConfig
	Logger      LoggerConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OllamaConfig points at an Ollama server and names the model to run on it.
type OllamaConfig struct {
	ServerURL string
	Model     string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

// LLMConfig configures the model used for content generation and answer
// judging.
type LLMConfig struct {
	Ollama OllamaConfig
}

// EmbeddingConfig selects the embedding backend. Source is "openai" or
// "ollama"; the matching sub-config must be filled in.
type EmbeddingConfig struct {
	Source              string
	SimilarityThreshold float64
	OpenAI              OpenAIConfig
	Ollama              OllamaConfig
}

// CacheTTLConfig holds cache lifetimes as duration strings ("24h", "30m").
// Read them through ParseTTLStringOrDefault so a missing or malformed value
// falls back instead of disabling expiry.
type CacheTTLConfig struct {
	Story            string
	Quiz             string
	QuizSession      string
	AnswerEvaluation string
	Embedding        string
	UserSession      string
	ProgressSummary  string
}

type RateLimitConfig struct {
	Enabled    bool
	DailyLimit int
}

type BatchConfig struct {
	LessonsPerTopic int
}

type LoggerConfig struct {
	Level string
	Env   string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Add config paths based on environment
	if os.Getenv("ENV") == "test" {
		// For test environment, look for config in the project root
		viper.AddConfigPath("../../configs")
		viper.AddConfigPath("../../")
	} else {
		// For production/development environment
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
	}

	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Log the config file being used
	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		absPath, _ := filepath.Abs(configFile)
		fmt.Printf("Using config file: %s\n", absPath)
	}

	config := &Config{
		Env: viper.GetString("env"),
		Server: ServerConfig{
			Port:         viper.GetInt("server.port"),
			ReadTimeout:  viper.GetDuration("server.read_timeout") * time.Second,
			WriteTimeout: viper.GetDuration("server.write_timeout") * time.Second,
		},
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetInt("db.port"),
			User:     viper.GetString("db.user"),
			Password: viper.GetString("db.password"),
			Name:     viper.GetString("db.name"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			SecretKey:       viper.GetString("jwt.secret_key"),
			AccessTokenTTL:  viper.GetDuration("jwt.access_token_ttl"),
			RefreshTokenTTL: viper.GetDuration("jwt.refresh_token_ttl"),
		},
		GoogleOAuth: GoogleOAuthConfig{
			ClientID:     viper.GetString("google_oauth.client_id"),
			ClientSecret: viper.GetString("google_oauth.client_secret"),
			RedirectURL:  viper.GetString("google_oauth.redirect_url"),
		},
		LLM: LLMConfig{
			Ollama: OllamaConfig{
				ServerURL: viper.GetString("llm.ollama.server_url"),
				Model:     viper.GetString("llm.ollama.model"),
			},
		},
		Embedding: EmbeddingConfig{
			Source:              viper.GetString("embedding.source"),
			SimilarityThreshold: viper.GetFloat64("embedding.similarity_threshold"),
			OpenAI: OpenAIConfig{
				APIKey: viper.GetString("embedding.openai.api_key"),
				Model:  viper.GetString("embedding.openai.model"),
			},
			Ollama: OllamaConfig{
				ServerURL: viper.GetString("embedding.ollama.server_url"),
				Model:     viper.GetString("embedding.ollama.model"),
			},
		},
		CacheTTLs: CacheTTLConfig{
			Story:            viper.GetString("cache_ttls.story"),
			Quiz:             viper.GetString("cache_ttls.quiz"),
			QuizSession:      viper.GetString("cache_ttls.quiz_session"),
			AnswerEvaluation: viper.GetString("cache_ttls.answer_evaluation"),
			Embedding:        viper.GetString("cache_ttls.embedding"),
			UserSession:      viper.GetString("cache_ttls.user_session"),
			ProgressSummary:  viper.GetString("cache_ttls.progress_summary"),
		},
		RateLimit: RateLimitConfig{
			Enabled:    viper.GetBool("rate_limit.enabled"),
			DailyLimit: viper.GetInt("rate_limit.daily_limit"),
		},
		Batch: BatchConfig{
			LessonsPerTopic: viper.GetInt("batch.lessons_per_topic"),
		},
		Logger: LoggerConfig{
			Level: viper.GetString("logger.level"),
			Env:   viper.GetString("logger.env"),
		},
	}

	// Secrets are usually injected through the environment rather than the
	// config file.
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		config.DB.Password = password
	}
	if redisAddress := os.Getenv("REDIS_ADDRESS"); redisAddress != "" {
		config.Redis.Address = redisAddress
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.Redis.Password = redisPassword
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.JWT.SecretKey = secret
	}
	if clientID := os.Getenv("GOOGLE_CLIENT_ID"); clientID != "" {
		config.GoogleOAuth.ClientID = clientID
	}
	if clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET"); clientSecret != "" {
		config.GoogleOAuth.ClientSecret = clientSecret
	}
	if openAIKey := os.Getenv("OPENAI_API_KEY"); openAIKey != "" {
		config.Embedding.OpenAI.APIKey = openAIKey
	}
	if llmServer := os.Getenv("OLLAMA_SERVER"); llmServer != "" {
		config.LLM.Ollama.ServerURL = llmServer
		config.Embedding.Ollama.ServerURL = llmServer
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("env", "development")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 20)
	viper.SetDefault("server.write_timeout", 20)
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", 1521)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.access_token_ttl", "24h")
	viper.SetDefault("jwt.refresh_token_ttl", "720h")
	viper.SetDefault("llm.ollama.server_url", "http://localhost:11434")
	viper.SetDefault("llm.ollama.model", "qwen3:0.6b")
	viper.SetDefault("embedding.source", "ollama")
	viper.SetDefault("embedding.similarity_threshold", 0.92)
	viper.SetDefault("embedding.ollama.server_url", "http://localhost:11434")
	viper.SetDefault("embedding.ollama.model", "nomic-embed-text")
	viper.SetDefault("embedding.openai.model", "text-embedding-3-small")
	viper.SetDefault("cache_ttls.story", "24h")
	viper.SetDefault("cache_ttls.quiz", "24h")
	viper.SetDefault("cache_ttls.quiz_session", "2h")
	viper.SetDefault("cache_ttls.answer_evaluation", "24h")
	viper.SetDefault("cache_ttls.embedding", "168h")
	viper.SetDefault("cache_ttls.user_session", "24h")
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.daily_limit", 100)
	viper.SetDefault("batch.lessons_per_topic", 2)
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.env", "development")
}

// GetDSN builds the Oracle connection string for the configured database.
func (c *Config) GetDSN() string {
	// Oracle DSN format: user/password@host:port/service
	return fmt.Sprintf("oracle://%s:%s@%s:%d/%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.Name,
	)
}

// ParseTTLStringOrDefault parses a duration string from the config, falling
// back to defaultTTL when the value is empty or malformed.
func (c *Config) ParseTTLStringOrDefault(ttl string, defaultTTL time.Duration) time.Duration {
	if ttl == "" {
		return defaultTTL
	}
	parsed, err := time.ParseDuration(ttl)
	if err != nil || parsed <= 0 {
		return defaultTTL
	}
	return parsed
}

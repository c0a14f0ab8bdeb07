package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Store configuration for the insight vector store
	Store StoreConfig `mapstructure:"store"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// NLP configuration
	NLP NLPConfig `mapstructure:"nlp"`

	// Retrieval configuration
	Retrieval RetrievalConfig `mapstructure:"retrieval"`

	// Modality configuration for the remote inference services
	Modality ModalityConfig `mapstructure:"modality"`

	// Search configuration for the web search API
	Search SearchConfig `mapstructure:"search"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ParquetPath string `mapstructure:"parquet_path"`
	BatchSize   int    `mapstructure:"batch_size"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text (colored) or json
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// StoreConfig holds insight store configuration
type StoreConfig struct {
	Driver      string `mapstructure:"driver"` // memory, badger, postgres, qdrant
	URI         string `mapstructure:"uri"`
	Collection  string `mapstructure:"collection"`
	Dimensions  int    `mapstructure:"dimensions"`
	UsePgVector bool   `mapstructure:"use_pgvector"`
}

// NLPConfig holds NLP configuration
type NLPConfig struct {
	// Models is a map of model configurations keyed by usage ("chat", "report")
	Models map[string]NLPModelConfig `mapstructure:"models"`

	// MaxRetries bounds retries of a generation request before any token is streamed
	MaxRetries int `mapstructure:"max_retries"`
}

// NLPModelConfig holds configuration for a specific model
type NLPModelConfig struct {
	Provider    string  `mapstructure:"provider"` // openai, gemini
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Provider      string `mapstructure:"provider"` // openai, gemini
	Model         string `mapstructure:"model"`
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	Dimensions    int    `mapstructure:"dimensions"`
	InputPrefixes bool   `mapstructure:"input_prefixes"` // prepend "query: " / "passage: "
}

// RetrievalConfig holds tiered retrieval defaults
type RetrievalConfig struct {
	TopK     int `mapstructure:"top_k"`
	ChatTopK int `mapstructure:"chat_top_k"`
}

// ModalityConfig holds the remote inference endpoints and per-call budgets
type ModalityConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`

	SpeechPath      string `mapstructure:"speech_path"`
	AcousticPath    string `mapstructure:"acoustic_path"`
	VisionPath      string `mapstructure:"vision_path"`
	ZeroShotPath    string `mapstructure:"zero_shot_path"`
	DermatologyPath string `mapstructure:"dermatology_path"`

	SpeechTimeout   time.Duration `mapstructure:"speech_timeout"`
	AcousticTimeout time.Duration `mapstructure:"acoustic_timeout"`
	VisionTimeout   time.Duration `mapstructure:"vision_timeout"`
	ZeroShotTimeout time.Duration `mapstructure:"zero_shot_timeout"`
	DocumentTimeout time.Duration `mapstructure:"document_timeout"`
	SummaryTimeout  time.Duration `mapstructure:"summary_timeout"`

	AcousticHighThreshold float64  `mapstructure:"acoustic_high_threshold"`
	AcousticLowThreshold  float64  `mapstructure:"acoustic_low_threshold"`
	MaxDocumentChars      int      `mapstructure:"max_document_chars"`
	ImageLabels           []string `mapstructure:"image_labels"`

	// AllowLocalFiles lets analyzers read file:// and bare-path references.
	// Only local CLI commands set it; it is never loaded from config.
	AllowLocalFiles bool `mapstructure:"-"`
}

// SearchConfig holds web search configuration
type SearchConfig struct {
	Provider          string  `mapstructure:"provider"` // tavily
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	MaxResults        int     `mapstructure:"max_results"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("store.collection", "insights")
	viper.SetDefault("store.dimensions", 1024)
	viper.SetDefault("store.use_pgvector", true)

	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1024)

	viper.SetDefault("nlp.max_retries", 2)
	viper.SetDefault("nlp.models.chat.provider", "gemini")
	viper.SetDefault("nlp.models.chat.model", "gemini-2.0-flash")
	viper.SetDefault("nlp.models.chat.temperature", 0.7)
	viper.SetDefault("nlp.models.report.provider", "openai")
	viper.SetDefault("nlp.models.report.model", "llama-3.3-70b-versatile")
	viper.SetDefault("nlp.models.report.temperature", 0.3)
	viper.SetDefault("nlp.models.report.max_tokens", 2048)

	viper.SetDefault("retrieval.top_k", 3)
	viper.SetDefault("retrieval.chat_top_k", 5)

	viper.SetDefault("modality.speech_path", "/agent/speech")
	viper.SetDefault("modality.acoustic_path", "/agent/hear/embedding")
	viper.SetDefault("modality.vision_path", "/agent/vision")
	viper.SetDefault("modality.zero_shot_path", "/agent/siglip/text")
	viper.SetDefault("modality.dermatology_path", "/agent/skin-india")
	viper.SetDefault("modality.speech_timeout", 60*time.Second)
	viper.SetDefault("modality.acoustic_timeout", 30*time.Second)
	viper.SetDefault("modality.vision_timeout", 120*time.Second)
	viper.SetDefault("modality.zero_shot_timeout", 30*time.Second)
	viper.SetDefault("modality.document_timeout", 30*time.Second)
	viper.SetDefault("modality.summary_timeout", 120*time.Second)
	viper.SetDefault("modality.acoustic_high_threshold", 15.0)
	viper.SetDefault("modality.acoustic_low_threshold", 5.0)
	viper.SetDefault("modality.max_document_chars", 10000)
	viper.SetDefault("modality.image_labels", []string{"Normal", "Fracture", "Pneumonia", "Infection", "Tumor", "Hemorrhage"})

	viper.SetDefault("search.provider", "tavily")
	viper.SetDefault("search.base_url", "https://api.tavily.com")
	viper.SetDefault("search.max_results", 1)
	viper.SetDefault("search.requests_per_second", 2.0)
	viper.SetDefault("search.burst", 1)

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	viper.SetDefault("telemetry.batch_size", 100)
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.medinsight/telemetry", home))
		viper.SetDefault("store.uri", fmt.Sprintf("%s/.medinsight/insights", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if config.NLP.Models == nil {
		config.NLP.Models = make(map[string]NLPModelConfig)
	}

	// API keys follow the provider of each model
	for name, m := range config.NLP.Models {
		if m.APIKey == "" {
			m.APIKey = providerKey(m.Provider)
		}
		config.NLP.Models[name] = m
	}
	if config.Embedding.APIKey == "" {
		config.Embedding.APIKey = providerKey(config.Embedding.Provider)
	}

	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		config.Search.APIKey = key
	}

	if url := os.Getenv("INFERENCE_BASE_URL"); url != "" {
		config.Modality.BaseURL = url
	}
	if key := os.Getenv("INFERENCE_API_KEY"); key != "" {
		config.Modality.APIKey = key
	}

	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		config.Store.Driver = driver
	}
	if uri := os.Getenv("STORE_URI"); uri != "" {
		config.Store.URI = uri
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			config.Server.Port = p
		}
	}

	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}

func providerKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

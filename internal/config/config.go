package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderLangbase = "langbase"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// CORS origin allowed to call the relay
	FrontendURL string

	// Upstream selection
	Provider string

	// Langbase
	LangbaseBaseURL    string
	LangbasePipePath   string
	LangbaseArticleKey string
	LangbaseChatKey    string

	// OpenAI
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Timeouts
	UpstreamTimeout    time.Duration
	StreamWriteTimeout time.Duration
}

// Load reads configuration from the environment. API keys are optional here:
// a missing key only shows up as a failed upstream call.
func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	articleKey := getEnvOrDefault("LANGBASE_API_KEY", "")

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		Env:                getEnvOrDefault("ENV", "development"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "*"),
		Provider:           getEnvOrDefault("PROVIDER", ProviderLangbase),
		LangbaseBaseURL:    getEnvOrDefault("LANGBASE_API_BASE_URL", "https://api.langbase.com"),
		LangbasePipePath:   getEnvOrDefault("LANGBASE_PIPE_PATH", "/v1/pipes/run"),
		LangbaseArticleKey: articleKey,
		LangbaseChatKey:    getEnvOrDefault("LANGBASE_PIPE_API_KEY", articleKey),
		OpenAIAPIKey:       getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnvOrDefault("OPENAI_BASE_URL", ""),
		OpenAIModel:        getEnvOrDefault("OPENAI_MODEL", "gpt-4-turbo"),
		GeminiAPIKey:       getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:        getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		UpstreamTimeout:    getEnvAsDurationOrDefault("UPSTREAM_TIMEOUT", 30*time.Second),
		StreamWriteTimeout: getEnvAsDurationOrDefault("STREAM_WRITE_TIMEOUT", 5*time.Minute),
	}

	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go durations ("45s") or a plain number of
// seconds.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n := getEnvAsIntOrDefault(key, -1); n >= 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

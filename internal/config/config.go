package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// JWT
	JWTSecret        string
	JWTExpireMinutes int

	// LLM Provider
	LLMProvider             string // "openai" または "azure_openai"
	OpenAIAPIKey            string
	OpenAIBaseURL           string
	OpenAIModel             string
	AzureOpenAIAPIKey       string
	AzureOpenAIEndpoint     string
	AzureOpenAIDeployment   string
	AzureOpenAIAPIVersion   string
	LLMTimeout              time.Duration
	LLMMaxTokens            int
	LLMAllowPrivateEndpoint bool

	// Auth
	PasswordMinLength int

	// Rate Limit
	RateLimitGeneral int
	RateLimitChat    int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.JWTExpireMinutes = getEnvInt("JWT_EXPIRE_MINUTES", 120)
	cfg.LLMProvider = getEnvString("LLM_PROVIDER", "openai")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "https://api.openai.com/v1")
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.AzureOpenAIAPIKey = os.Getenv("AZURE_OPENAI_API_KEY")
	cfg.AzureOpenAIEndpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
	cfg.AzureOpenAIDeployment = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
	cfg.AzureOpenAIAPIVersion = getEnvString("AZURE_OPENAI_API_VERSION", "2024-02-15-preview")
	cfg.LLMTimeout = getEnvDuration("LLM_TIMEOUT", 60*time.Second)
	cfg.LLMMaxTokens = getEnvInt("LLM_MAX_TOKENS", 2048)
	cfg.LLMAllowPrivateEndpoint = getEnvBool("LLM_ALLOW_PRIVATE_ENDPOINT", false)
	cfg.PasswordMinLength = getEnvInt("PASSWORD_MIN_LENGTH", 8)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitChat = getEnvInt("RATE_LIMIT_CHAT", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

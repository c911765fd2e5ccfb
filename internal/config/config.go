package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	TransportEvolution = "evolution"
	TransportTelegram  = "telegram"
)

type Config struct {
	// Transport
	Transport         string
	BotToken          string
	EvolutionURL      string
	EvolutionAPIKey   string
	EvolutionInstance string
	SendMinIntervalMs int

	// Text generation
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	// Knowledge search
	WeaviateHost   string
	WeaviateScheme string
	WeaviateClass  string

	// Store
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StoreTTLHours int

	// Audit database (optional)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Security
	AdminJWTSecret   string
	WhitelistEnabled bool

	// Member welcome and goodbye direct messages
	WelcomeEnabled bool

	// Application
	AppEnv   string
	AppPort  string
	LogLevel string

	// Rate Limiting
	RateLimitPerUser int
	GroupIdleSeconds int

	// Quiz
	QuizPerParticipant     int
	QuizJoinBonus          int
	QuizMaxQuestions       int
	QuizPollTimeoutSeconds int
	QuizFetchRetries       int
	QuizFetchBackoffMs     int
	QuizPauseBetween       bool
	QuizContextQuery       string
	QuizRulesURL           string
	QuizProgramName        string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Transport:         strings.ToLower(getEnv("TRANSPORT", TransportEvolution)),
		BotToken:          getEnv("BOT_TOKEN", ""),
		EvolutionURL:      getEnv("EVOLUTION_API_URL", "http://localhost:8080"),
		EvolutionAPIKey:   getEnv("EVOLUTION_API_KEY", ""),
		EvolutionInstance: getEnv("EVOLUTION_INSTANCE", "quiz-instance"),
		SendMinIntervalMs: getEnvInt("SEND_MIN_INTERVAL_MS", 2000),

		OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		WeaviateHost:   getEnv("WEAVIATE_HOST", ""),
		WeaviateScheme: getEnv("WEAVIATE_SCHEME", "http"),
		WeaviateClass:  getEnv("WEAVIATE_CLASS", "Document"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		StoreTTLHours: getEnvInt("STORE_TTL_HOURS", 72),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "quizbot"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "quizbot_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		AdminJWTSecret:   getEnv("ADMIN_JWT_SECRET", ""),
		WhitelistEnabled: getEnvBool("WHITELIST_ENABLED", true),

		WelcomeEnabled: getEnvBool("WELCOME_ENABLED", true),

		AppEnv:   getEnv("APP_ENV", "development"),
		AppPort:  getEnv("APP_PORT", "8001"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RateLimitPerUser: getEnvInt("RATE_LIMIT_PER_USER", 20),
		GroupIdleSeconds: getEnvInt("GROUP_IDLE_SECONDS", 300),

		QuizPerParticipant:     getEnvInt("QUIZ_PER_PARTICIPANT", 3),
		QuizJoinBonus:          getEnvInt("QUIZ_JOIN_BONUS", 3),
		QuizMaxQuestions:       getEnvInt("QUIZ_MAX_QUESTIONS", 10),
		QuizPollTimeoutSeconds: getEnvInt("QUIZ_POLL_TIMEOUT_SECONDS", 30),
		QuizFetchRetries:       getEnvInt("QUIZ_FETCH_RETRIES", 3),
		QuizFetchBackoffMs:     getEnvInt("QUIZ_FETCH_BACKOFF_MS", 1000),
		QuizPauseBetween:       getEnvBool("QUIZ_PAUSE_BETWEEN", false),
		QuizContextQuery: getEnv("QUIZ_CONTEXT_QUERY",
			"Regras, validações, benefícios, prazos, níveis, recompensas do programa"),
		QuizProgramName: getEnv("QUIZ_PROGRAM_NAME", "Renda Extra Ton"),
		QuizRulesURL:    getEnv("QUIZ_RULES_URL", "https://drive.google.com/file/d/1IGdnWI8CD4ltMSM5bJ5RN4sjP5Tu0REO/view"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Transport {
	case TransportEvolution:
		if c.EvolutionAPIKey == "" {
			return fmt.Errorf("EVOLUTION_API_KEY is required")
		}
	case TransportTelegram:
		if c.BotToken == "" {
			return fmt.Errorf("BOT_TOKEN is required")
		}
	default:
		return fmt.Errorf("TRANSPORT must be %q or %q", TransportEvolution, TransportTelegram)
	}
	if c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.AdminJWTSecret != "" && len(c.AdminJWTSecret) < 32 {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least 32 characters")
	}
	if c.QuizPerParticipant < 1 {
		return fmt.Errorf("QUIZ_PER_PARTICIPANT must be positive")
	}
	if c.QuizMaxQuestions < 1 {
		return fmt.Errorf("QUIZ_MAX_QUESTIONS must be positive")
	}
	if c.QuizJoinBonus < 0 {
		return fmt.Errorf("QUIZ_JOIN_BONUS must not be negative")
	}
	if c.GroupIdleSeconds < 1 {
		return fmt.Errorf("GROUP_IDLE_SECONDS must be positive")
	}
	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.AdminJWTSecret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET must be set in production")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR must be set in production")
	}
	if c.HasAuditDB() && c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if !c.WhitelistEnabled {
		return fmt.Errorf("WHITELIST_ENABLED must be true in production")
	}

	return nil
}

// HasAuditDB reports whether a Postgres audit log is configured.
func (c *Config) HasAuditDB() bool {
	return c.DBHost != "" && c.DBPassword != ""
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) GetStoreTTL() time.Duration {
	return time.Duration(c.StoreTTLHours) * time.Hour
}

func (c *Config) GetPollTimeout() time.Duration {
	return time.Duration(c.QuizPollTimeoutSeconds) * time.Second
}

func (c *Config) GetFetchBackoff() time.Duration {
	return time.Duration(c.QuizFetchBackoffMs) * time.Millisecond
}

func (c *Config) GetGroupIdle() time.Duration {
	return time.Duration(c.GroupIdleSeconds) * time.Second
}

func (c *Config) GetSendMinInterval() time.Duration {
	return time.Duration(c.SendMinIntervalMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

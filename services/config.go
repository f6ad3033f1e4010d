package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	AI        AIConfig
	GigaChat  GigaChatConfig
	Gemini    GeminiConfig
	JWT       JWTConfig
	Session   SessionConfig
	Interview InterviewConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	Driver       string
	URL          string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

// AIConfig selects the chat provider: gigachat or gemini
type AIConfig struct {
	Provider string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type JWTConfig struct {
	Secret        string
	Issuer        string
	Audience      string
	ExpireMinutes int
}

type SessionConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

type InterviewConfig struct {
	TimeoutSchedule string
	IdleTimeout     time.Duration
}

type WebSocketConfig struct {
	AllowedOrigins string
}

type CORSConfig struct {
	AllowedOrigins string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.request_timeout", "120s")
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("ai.provider", "gigachat")
	viper.SetDefault("gigachat.client_id", "")
	viper.SetDefault("gigachat.client_secret", "")
	viper.SetDefault("gigachat.scope", DefaultGigaChatScope)
	viper.SetDefault("gigachat.auth_url", DefaultGigaChatAuthURL)
	viper.SetDefault("gigachat.api_url", DefaultGigaChatAPIURL)
	viper.SetDefault("gigachat.model", DefaultGigaChatModel)
	viper.SetDefault("gigachat.max_tokens", "2000")
	viper.SetDefault("gigachat.temperature", "0.7")
	viper.SetDefault("gigachat.insecure_skip_verify", "true")
	viper.SetDefault("gigachat.timeout", "60s")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", DefaultGeminiModel)
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("jwt.issuer", "InterviewHelperAPI")
	viper.SetDefault("jwt.audience", "InterviewHelperClient")
	viper.SetDefault("jwt.expire_minutes", "120")
	viper.SetDefault("session.ttl", DefaultSessionTTL.String())
	viper.SetDefault("session.cleanup_interval", "10m")
	viper.SetDefault("interview.timeout_schedule", DefaultTimeoutSchedule)
	viper.SetDefault("interview.idle_timeout", DefaultIdleTimeout.String())
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("cors.allowed_origins", "http://localhost:3000")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.request_timeout", "SERVER_REQUEST_TIMEOUT")
	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("ai.provider", "AI_PROVIDER")
	viper.BindEnv("gigachat.client_id", "GIGACHAT_CLIENT_ID")
	viper.BindEnv("gigachat.client_secret", "GIGACHAT_CLIENT_SECRET")
	viper.BindEnv("gigachat.scope", "GIGACHAT_SCOPE")
	viper.BindEnv("gigachat.auth_url", "GIGACHAT_AUTH_URL")
	viper.BindEnv("gigachat.api_url", "GIGACHAT_API_URL")
	viper.BindEnv("gigachat.model", "GIGACHAT_MODEL")
	viper.BindEnv("gigachat.max_tokens", "GIGACHAT_MAX_TOKENS")
	viper.BindEnv("gigachat.temperature", "GIGACHAT_TEMPERATURE")
	viper.BindEnv("gigachat.insecure_skip_verify", "GIGACHAT_INSECURE_SKIP_VERIFY")
	viper.BindEnv("gigachat.timeout", "GIGACHAT_TIMEOUT")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("jwt.issuer", "JWT_ISSUER")
	viper.BindEnv("jwt.audience", "JWT_AUDIENCE")
	viper.BindEnv("jwt.expire_minutes", "JWT_EXPIRE_MINUTES")
	viper.BindEnv("session.ttl", "SESSION_TTL")
	viper.BindEnv("session.cleanup_interval", "SESSION_CLEANUP_INTERVAL")
	viper.BindEnv("interview.timeout_schedule", "INTERVIEW_TIMEOUT_SCHEDULE")
	viper.BindEnv("interview.idle_timeout", "INTERVIEW_IDLE_TIMEOUT")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("server.port"),
			RequestTimeout: viper.GetDuration("server.request_timeout"),
		},
		Database: DatabaseConfig{
			Driver:       viper.GetString("database.driver"),
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			Provider: viper.GetString("ai.provider"),
		},
		GigaChat: GigaChatConfig{
			ClientID:           viper.GetString("gigachat.client_id"),
			ClientSecret:       viper.GetString("gigachat.client_secret"),
			Scope:              viper.GetString("gigachat.scope"),
			AuthURL:            viper.GetString("gigachat.auth_url"),
			APIURL:             viper.GetString("gigachat.api_url"),
			Model:              viper.GetString("gigachat.model"),
			MaxTokens:          viper.GetInt("gigachat.max_tokens"),
			Temperature:        viper.GetFloat64("gigachat.temperature"),
			InsecureSkipVerify: viper.GetBool("gigachat.insecure_skip_verify"),
			Timeout:            viper.GetDuration("gigachat.timeout"),
		},
		Gemini: GeminiConfig{
			APIKey: viper.GetString("gemini.api_key"),
			Model:  viper.GetString("gemini.model"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("jwt.secret"),
			Issuer:        viper.GetString("jwt.issuer"),
			Audience:      viper.GetString("jwt.audience"),
			ExpireMinutes: viper.GetInt("jwt.expire_minutes"),
		},
		Session: SessionConfig{
			TTL:             viper.GetDuration("session.ttl"),
			CleanupInterval: viper.GetDuration("session.cleanup_interval"),
		},
		Interview: InterviewConfig{
			TimeoutSchedule: viper.GetString("interview.timeout_schedule"),
			IdleTimeout:     viper.GetDuration("interview.idle_timeout"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetString("cors.allowed_origins"),
		},
	}
}

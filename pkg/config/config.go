// ==============================================================================
// CONFIG PACKAGE - pkg/config/config.go
// ==============================================================================
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Mode selects between a live collaborator and its deterministic stub. Stubs
// exist so the pipeline stays testable when a collaborator is not provisioned.
type Mode string

const (
	ModeLive Mode = "live"
	ModeStub Mode = "stub"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Identity    IdentityVendorConfig
	DocAnalysis DocAnalysisConfig
	Board       BoardConfig
	Queue       QueueConfig
	Status      StatusConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// AuthConfig covers operator access to the queue admin endpoints.
type AuthConfig struct {
	JWTSecret string
}

// IdentityVendorConfig describes the inbound verification vendor integration.
// CallbackSigningKey is optional; when set, webhook payloads must carry a
// valid HMAC signature header.
type IdentityVendorConfig struct {
	CallbackSigningKey string
	CorrelationPrefix  string
}

// DocAnalysisConfig describes the OCR/vision collaborator. Mode is explicit:
// stub mode returns a fixed deterministic extraction instead of calling out.
type DocAnalysisConfig struct {
	Mode    Mode
	URL     string
	APIKey  string
	Timeout time.Duration
}

// BoardConfig describes the work-management board holding driver records.
type BoardConfig struct {
	Mode     Mode
	URL      string
	Token    string
	BoardID  string
	CacheTTL time.Duration
}

// QueueConfig carries the retry policy knobs for document processing.
type QueueConfig struct {
	MaxAttempts    int
	InterItemDelay time.Duration
}

// StatusConfig carries client-facing polling advice for the status endpoint.
type StatusConfig struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "change-this-secret"),
		},
		Identity: IdentityVendorConfig{
			CallbackSigningKey: getEnv("IDV_CALLBACK_SIGNING_KEY", ""),
			CorrelationPrefix:  getEnv("IDV_CORRELATION_PREFIX", "idv"),
		},
		DocAnalysis: DocAnalysisConfig{
			Mode:    getModeEnv("DOC_ANALYSIS_MODE", ModeStub),
			URL:     getEnv("DOC_ANALYSIS_URL", ""),
			APIKey:  getEnv("DOC_ANALYSIS_API_KEY", ""),
			Timeout: getDurationEnv("DOC_ANALYSIS_TIMEOUT", 60*time.Second),
		},
		Board: BoardConfig{
			Mode:     getModeEnv("BOARD_MODE", ModeStub),
			URL:      getEnv("BOARD_URL", ""),
			Token:    getEnv("BOARD_TOKEN", ""),
			BoardID:  getEnv("BOARD_ID", ""),
			CacheTTL: getDurationEnv("BOARD_CACHE_TTL", 30*time.Second),
		},
		Queue: QueueConfig{
			MaxAttempts:    getIntEnv("QUEUE_MAX_ATTEMPTS", 3),
			InterItemDelay: getDurationEnv("QUEUE_INTER_ITEM_DELAY", 500*time.Millisecond),
		},
		Status: StatusConfig{
			PollInterval: getDurationEnv("STATUS_POLL_INTERVAL", 3*time.Second),
			PollTimeout:  getDurationEnv("STATUS_POLL_TIMEOUT", 5*time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getModeEnv reads an explicit live/stub toggle. Anything other than "live"
// degrades to the stub, never the other way round.
func getModeEnv(key string, defaultValue Mode) Mode {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "live":
		return ModeLive
	case "stub":
		return ModeStub
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

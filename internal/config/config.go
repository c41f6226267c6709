package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/playpool/billiards/internal/channel"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL           string
	SnapshotTTLMinutes int

	// Server
	Port        string
	GamePort    string
	FrontendURL string

	// Logging
	LogFile  string
	LogLevel string

	// Game Settings
	PhysicsSettingsFile string
	CueUpdateHz         int
	ReadyWaitSeconds    int
	MatchmakerInterval  time.Duration

	// Channel
	AckTimeout time.Duration
	AckPoll    time.Duration
	MaxResends int
	ChunkSize  int
	MaxFrame   int

	// Security
	JWTSecret       string
	TokenTTLMinutes int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/billiards?sslmode=disable"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),

		// Redis
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SnapshotTTLMinutes: getEnvInt("SESSION_SNAPSHOT_TTL_MINUTES", 60),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		GamePort:    getEnv("GAME_PORT", "5555"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Logging
		LogFile:  getEnv("LOG_FILE", ""),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Game Settings
		PhysicsSettingsFile: getEnv("PHYSICS_SETTINGS_FILE", ""),
		CueUpdateHz:         getEnvInt("CUE_UPDATE_HZ", 30),
		ReadyWaitSeconds:    getEnvInt("READY_WAIT_SECONDS", 3),
		MatchmakerInterval:  getEnvDuration("MATCHMAKER_INTERVAL", 2*time.Second),

		// Channel
		AckTimeout: time.Duration(getEnvInt("ACK_TIMEOUT_MS", int(channel.DefaultAckTimeout/time.Millisecond))) * time.Millisecond,
		AckPoll:    time.Duration(getEnvInt("ACK_POLL_MS", int(channel.DefaultAckPoll/time.Millisecond))) * time.Millisecond,
		MaxResends: getEnvInt("MAX_RESENDS", channel.DefaultMaxResends),
		ChunkSize:  getEnvInt("CHUNK_SIZE", channel.DefaultChunkSize),
		MaxFrame:   getEnvInt("MAX_FRAME_BYTES", channel.DefaultMaxFrame),

		// Security
		JWTSecret:       getEnv("JWT_SECRET", "change-me-in-production"),
		TokenTTLMinutes: getEnvInt("TOKEN_TTL_MINUTES", 60*24),
	}
}

// ChannelOptions are the per-connection channel settings. MAX_RESENDS=0
// disables resending.
func (c *Config) ChannelOptions() channel.Options {
	resends := c.MaxResends
	if resends <= 0 {
		resends = channel.NoResends
	}
	return channel.Options{
		ChunkSize:  c.ChunkSize,
		AckPoll:    c.AckPoll,
		AckTimeout: c.AckTimeout,
		MaxResends: resends,
		MaxFrame:   c.MaxFrame,
	}
}

// CueInterval is the period between cue telemetry updates.
func (c *Config) CueInterval() time.Duration {
	if c.CueUpdateHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.CueUpdateHz)
}

func (c *Config) ReadyWait() time.Duration {
	return time.Duration(c.ReadyWaitSeconds) * time.Second
}

func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLMinutes) * time.Minute
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

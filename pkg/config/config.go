package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Feasibility FeasibilityConfig
	Workspace   WorkspaceConfig
	Exports     ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig verifies externally issued access tokens. Auth can be disabled
// entirely for local planning sessions.
type JWTConfig struct {
	Enabled bool
	Secret  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// FeasibilityConfig points at the OSRM validation gateway websocket.
type FeasibilityConfig struct {
	URL              string
	RequestTimeout   time.Duration
	ReconnectMinWait time.Duration
	ReconnectMaxWait time.Duration
}

// WorkspaceConfig carries the scheduling thresholds and heuristic knobs.
// The minute thresholds mirror the planning desk's house rules; treat them
// as tunables, not hard business invariants.
type WorkspaceConfig struct {
	ShortBufferMinutes     int
	TightPositioningMargin int
	CompressionGapMinutes  int
	ReassignLoadPenalty    float64
	RefreshDebounce        time.Duration
	AutoReassign           bool
}

// ExportsConfig governs incident report rendering.
type ExportsConfig struct {
	Title string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Enabled: v.GetBool("ENABLE_AUTH"),
		Secret:  v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Feasibility = FeasibilityConfig{
		URL:              v.GetString("FEASIBILITY_WS_URL"),
		RequestTimeout:   parseDuration(v.GetString("FEASIBILITY_REQUEST_TIMEOUT"), 10*time.Second),
		ReconnectMinWait: parseDuration(v.GetString("FEASIBILITY_RECONNECT_MIN"), time.Second),
		ReconnectMaxWait: parseDuration(v.GetString("FEASIBILITY_RECONNECT_MAX"), 30*time.Second),
	}

	cfg.Workspace = WorkspaceConfig{
		ShortBufferMinutes:     v.GetInt("WORKSPACE_SHORT_BUFFER_MINUTES"),
		TightPositioningMargin: v.GetInt("WORKSPACE_TIGHT_POSITIONING_MARGIN"),
		CompressionGapMinutes:  v.GetInt("WORKSPACE_COMPRESSION_GAP_MINUTES"),
		ReassignLoadPenalty:    v.GetFloat64("WORKSPACE_REASSIGN_LOAD_PENALTY"),
		RefreshDebounce:        parseDuration(v.GetString("WORKSPACE_REFRESH_DEBOUNCE"), 400*time.Millisecond),
		AutoReassign:           v.GetBool("WORKSPACE_AUTO_REASSIGN"),
	}

	cfg.Exports = ExportsConfig{
		Title: v.GetString("EXPORTS_TITLE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "planner")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_AUTH", false)
	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("FEASIBILITY_WS_URL", "ws://localhost:9090/ws/validate")
	v.SetDefault("FEASIBILITY_REQUEST_TIMEOUT", "10s")
	v.SetDefault("FEASIBILITY_RECONNECT_MIN", "1s")
	v.SetDefault("FEASIBILITY_RECONNECT_MAX", "30s")

	v.SetDefault("WORKSPACE_SHORT_BUFFER_MINUTES", 10)
	v.SetDefault("WORKSPACE_TIGHT_POSITIONING_MARGIN", 5)
	v.SetDefault("WORKSPACE_COMPRESSION_GAP_MINUTES", 15)
	v.SetDefault("WORKSPACE_REASSIGN_LOAD_PENALTY", 0.35)
	v.SetDefault("WORKSPACE_REFRESH_DEBOUNCE", "400ms")
	v.SetDefault("WORKSPACE_AUTO_REASSIGN", false)

	v.SetDefault("EXPORTS_TITLE", "Incidencias de planificacion")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

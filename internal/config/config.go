package config

import (
	"fmt"
	"os"
	"ranking-server/internal/constants"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath             string
	ServerPort         string
	LogLevel           string
	AllowedOrigins     []string
	DefaultTopRankSize int
	RankStrategy       string
	// requests per minute per client IP, 0 disables limiting
	RateLimit int
}

var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	defaultTop, err := getEnvInt("DEFAULT_TOP_RANK_SIZE", constants.DefaultTopRankSize)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getEnvInt("RATE_LIMIT", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBPath:             getEnv("DB_PATH", "ranking.db"),
		ServerPort:         getEnv("SERVER_PORT", "8000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", defaultAllowedOrigins),
		DefaultTopRankSize: defaultTop,
		RankStrategy:       getEnv("RANK_STRATEGY", constants.RankStrategySkipList),
		RateLimit:          rateLimit,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("default_top_rank_size", cfg.DefaultTopRankSize).
		Str("rank_strategy", cfg.RankStrategy).
		Int("rate_limit", cfg.RateLimit).
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.DefaultTopRankSize < 1 || c.DefaultTopRankSize > constants.MaxTopRankSize {
		return fmt.Errorf("DEFAULT_TOP_RANK_SIZE must be between 1 and %d, got %d",
			constants.MaxTopRankSize, c.DefaultTopRankSize)
	}
	switch c.RankStrategy {
	case constants.RankStrategyScan, constants.RankStrategySkipList:
	default:
		return fmt.Errorf("RANK_STRATEGY must be %q or %q, got %q",
			constants.RankStrategyScan, constants.RankStrategySkipList, c.RankStrategy)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

var Module = fx.Provide(Load)

package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken         string           `yaml:"discord_token"`
	DatabasePath         string           `yaml:"database_path"`
	LogLevel             string           `yaml:"log_level"`
	DefaultModLogChannel string           `yaml:"default_mod_log_channel"`
	Health               HealthConfig     `yaml:"health"`
	Moderation           ModerationConfig `yaml:"moderation"`
	Scheduler            SchedulerConfig  `yaml:"scheduler"`
	Currency             CurrencyConfig   `yaml:"currency"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ModerationConfig holds the default strike policy applied to guilds that
// have no stored override. A threshold of 0 disables that escalation step;
// ban_minutes of 0 means bans are permanent.
type ModerationConfig struct {
	MuteThreshold int `yaml:"mute_threshold"`
	KickThreshold int `yaml:"kick_threshold"`
	BanThreshold  int `yaml:"ban_threshold"`
	MuteMinutes   int `yaml:"mute_minutes"`
	BanMinutes    int `yaml:"ban_minutes"`
}

type SchedulerConfig struct {
	PollSeconds int `yaml:"poll_seconds"`
}

type CurrencyConfig struct {
	DailyReward   int64 `yaml:"daily_reward"`
	CooldownHours int   `yaml:"cooldown_hours"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:         "/data/modguard.db",
		LogLevel:             "info",
		DefaultModLogChannel: "",
		Health:               HealthConfig{Enabled: false, Addr: ":8080"},
		Moderation: ModerationConfig{
			MuteThreshold: 2,
			KickThreshold: 3,
			BanThreshold:  5,
			MuteMinutes:   30,
			BanMinutes:    0,
		},
		Scheduler: SchedulerConfig{PollSeconds: 60},
		Currency:  CurrencyConfig{DailyReward: 100, CooldownHours: 24},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultModLogChannel = envString("DEFAULT_MOD_LOG_CHANNEL", cfg.DefaultModLogChannel)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Moderation.MuteThreshold = envInt("MUTE_THRESHOLD", cfg.Moderation.MuteThreshold)
	cfg.Moderation.KickThreshold = envInt("KICK_THRESHOLD", cfg.Moderation.KickThreshold)
	cfg.Moderation.BanThreshold = envInt("BAN_THRESHOLD", cfg.Moderation.BanThreshold)
	cfg.Moderation.MuteMinutes = envInt("MUTE_MINUTES", cfg.Moderation.MuteMinutes)
	cfg.Moderation.BanMinutes = envInt("BAN_MINUTES", cfg.Moderation.BanMinutes)
	cfg.Scheduler.PollSeconds = envInt("SCHEDULER_POLL_SECONDS", cfg.Scheduler.PollSeconds)
	cfg.Currency.DailyReward = int64(envInt("CURRENCY_DAILY_REWARD", int(cfg.Currency.DailyReward)))
	cfg.Currency.CooldownHours = envInt("CURRENCY_COOLDOWN_HOURS", cfg.Currency.CooldownHours)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

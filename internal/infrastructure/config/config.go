package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	EnvRedisPassword = "QUOTEBOT_REDIS_PASSWORD"
	EnvPostgresDSN   = "QUOTEBOT_POSTGRES_DSN"
)

type Config struct {
	App struct {
		LogLevel      string `toml:"log_level"`
		NotifyChannel string `toml:"notify_channel"` // 推送报价的目标频道
	} `toml:"app"`

	Snapshot struct {
		BaseURL    string `toml:"base_url"`
		TimeoutSec int    `toml:"timeout_sec"`
		UserAgent  string `toml:"user_agent"`
	} `toml:"snapshot"`

	Stream struct {
		Enabled          bool     `toml:"enabled"`
		WsURL            string   `toml:"ws_url"` // e.g. wss://streamer.finance.yahoo.com/
		Symbols          []string `toml:"symbols"`
		BackoffInitialMs int      `toml:"backoff_initial_ms"`
		BackoffMaxMs     int      `toml:"backoff_max_ms"`
		BackoffJitter    float64  `toml:"backoff_jitter"`
	} `toml:"stream"`

	Triggers struct {
		Kafka struct {
			Enabled bool     `toml:"enabled"`
			Brokers []string `toml:"brokers"`
			Topic   string   `toml:"topic"`
			GroupID string   `toml:"group_id"`
		} `toml:"kafka"`
	} `toml:"triggers"`

	Storage struct {
		Redis struct {
			Enabled    bool   `toml:"enabled"`
			Addr       string `toml:"addr"`
			Password   string `toml:"password"`
			DB         int    `toml:"db"`
			Prefix     string `toml:"prefix"`
			TTLSeconds int    `toml:"ttl_seconds"`
			Stream     string `toml:"stream"`
			Channel    string `toml:"channel"`
		} `toml:"redis"`

		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 不读取文件时使用，cmd/quote 未指定 -config 时以此构建行情客户端
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyEnv 敏感配置允许通过环境变量（或 .env）覆盖
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvRedisPassword)); v != "" {
		cfg.Storage.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.NotifyChannel == "" {
		cfg.App.NotifyChannel = "console"
	}
	if cfg.Snapshot.BaseURL == "" {
		cfg.Snapshot.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.Snapshot.TimeoutSec <= 0 {
		cfg.Snapshot.TimeoutSec = 10
	}
	if cfg.Stream.WsURL == "" {
		cfg.Stream.WsURL = "wss://streamer.finance.yahoo.com/"
	}
	if cfg.Stream.BackoffInitialMs <= 0 {
		cfg.Stream.BackoffInitialMs = 500
	}
	if cfg.Stream.BackoffMaxMs <= 0 {
		cfg.Stream.BackoffMaxMs = 10_000
	}
	if cfg.Stream.BackoffJitter <= 0 {
		cfg.Stream.BackoffJitter = 0.5
	}
	if cfg.Triggers.Kafka.Topic == "" {
		cfg.Triggers.Kafka.Topic = "quotebot.triggers"
	}
	if cfg.Triggers.Kafka.GroupID == "" {
		cfg.Triggers.Kafka.GroupID = "quotebot"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "quotebot"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/quotebot.db"
	}
}

func validate(cfg *Config) error {
	cfg.Stream.Symbols = normalizeSymbols(cfg.Stream.Symbols)
	if cfg.Stream.Enabled && len(cfg.Stream.Symbols) == 0 {
		return errors.New("stream.symbols is empty but stream enabled")
	}
	if cfg.Stream.BackoffMaxMs < cfg.Stream.BackoffInitialMs {
		return fmt.Errorf("stream.backoff_max_ms (%d) < backoff_initial_ms (%d)",
			cfg.Stream.BackoffMaxMs, cfg.Stream.BackoffInitialMs)
	}
	if cfg.Stream.BackoffJitter > 1 {
		return errors.New("stream.backoff_jitter must be within (0, 1]")
	}

	if k := cfg.Triggers.Kafka; k.Enabled && len(normalizeBrokers(k.Brokers)) == 0 {
		return errors.New("triggers.kafka.brokers empty but enabled")
	}
	cfg.Triggers.Kafka.Brokers = normalizeBrokers(cfg.Triggers.Kafka.Brokers)

	if cfg.Storage.Redis.Enabled && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr empty but enabled")
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return fmt.Errorf("storage.postgres.dsn empty but enabled (set it or %s)", EnvPostgresDSN)
	}
	return nil
}

// normalizeSymbols 去空白、去重，保留大小写（BRK.B 等代码区分大小写）
func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func normalizeBrokers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, b := range in {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

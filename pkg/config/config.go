package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port int `yaml:"port"`

		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // drain budget on SIGTERM
	} `yaml:"server"`
	Binance struct {
		RESTURL        string        `yaml:"rest_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		Interval       string        `yaml:"interval"`
		CandleLimit    int           `yaml:"candle_limit"`
		MinBars        int           `yaml:"min_bars"`
		StreamEnabled  bool          `yaml:"stream_enabled"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"binance"`
	Analysis struct {
		ScanInterval    time.Duration `yaml:"scan_interval"`
		FastEMA         int           `yaml:"fast_ema"`
		SlowEMA         int           `yaml:"slow_ema"`
		BOSLookback     int           `yaml:"bos_lookback"`
		CHOCHLookback   int           `yaml:"choch_lookback"`
		VolumeThreshold float64       `yaml:"volume_threshold"`
		MinStrength     float64       `yaml:"min_signal_strength"`
	} `yaml:"analysis"`
	Alerts struct {
		BaseCooldown      time.Duration `yaml:"base_cooldown"`
		ConfirmedCooldown time.Duration `yaml:"confirmed_cooldown"`
		NoveltyDelta      float64       `yaml:"novelty_delta"`
		HistoryLimit      int           `yaml:"history_limit"`
	} `yaml:"alerts"`
	Notifications struct {
		Cooldown     time.Duration `yaml:"cooldown"`
		HistoryLimit int           `yaml:"history_limit"`
		Telegram     struct {
			Enabled  bool   `yaml:"enabled"`
			APIURL   string `yaml:"api_url"`
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
		} `yaml:"telegram"`
		Webhook struct {
			Enabled bool   `yaml:"enabled"`
			URL     string `yaml:"url"`
		} `yaml:"webhook"`
	} `yaml:"notifications"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		AlertsTopic  string   `yaml:"alerts_topic"`
		CandlesTopic string   `yaml:"candles_topic"`
		LogsTopic    string   `yaml:"logs_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			BatchSize   int           `yaml:"batch_size"`
			BatchBytes  int           `yaml:"batch_bytes"`
			Linger      time.Duration `yaml:"linger"`
			MaxAttempts int           `yaml:"max_attempts"`
			Async       bool          `yaml:"async"`

			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled         bool          `yaml:"enabled"`
			GroupID         string        `yaml:"group_id"`
			AutoOffsetReset string        `yaml:"auto_offset_reset"`
			Workers         int           `yaml:"workers"`
			BufferSize      int           `yaml:"buffer_size"`
			RetryMax        int           `yaml:"retry_max"`
			BackoffMin      time.Duration `yaml:"backoff_min"`
			BackoffMax      time.Duration `yaml:"backoff_max"`
			DLQTopic        string        `yaml:"dlq_topic"`
			MinBytes        int           `yaml:"min_bytes"`
			MaxBytes        int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled bool `yaml:"enabled"`

		Addr     string `yaml:"addr"`
		Password string `yaml:"password"` // empty disables AUTH
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		QueueSize  int           `yaml:"queue_size"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
}

// Load parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	var c Config
	if err := yaml.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads the YAML file, then lets environment variables
// override the deploy-specific keys.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	env("PORT", func(v string) {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	})
	env("SYMBOLS", func(v string) { cfg.Binance.Symbols = strings.Split(v, ",") })
	env("BINANCE_REST_URL", func(v string) { cfg.Binance.RESTURL = v })
	env("TELEGRAM_BOT_TOKEN", func(v string) {
		cfg.Notifications.Telegram.BotToken = v
		cfg.Notifications.Telegram.Enabled = true
	})
	env("TELEGRAM_CHAT_ID", func(v string) { cfg.Notifications.Telegram.ChatID = v })
	env("WEBHOOK_URL", func(v string) {
		cfg.Notifications.Webhook.URL = v
		cfg.Notifications.Webhook.Enabled = true
	})
	env("KAFKA_BROKERS", func(v string) { cfg.Kafka.Brokers = strings.Split(v, ",") })
	env("KAFKA_ALERTS_TOPIC", func(v string) { cfg.Kafka.AlertsTopic = v })
	env("REDIS_ADDR", func(v string) { cfg.Redis.Addr = v })
	env("REDIS_PASSWORD", func(v string) { cfg.Redis.Password = v })

	return cfg, nil
}

// env runs apply when the named variable is set and non-empty.
func env(name string, apply func(string)) {
	if v := os.Getenv(name); v != "" {
		apply(v)
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Binance.Symbols) == 0 {
		return fmt.Errorf("binance.symbols cannot be empty")
	}
	if c.Analysis.FastEMA != 0 && c.Analysis.SlowEMA != 0 && c.Analysis.FastEMA >= c.Analysis.SlowEMA {
		return fmt.Errorf("analysis.fast_ema must be below analysis.slow_ema")
	}
	if c.Analysis.MinStrength < 0 || c.Analysis.MinStrength > 1 {
		return fmt.Errorf("analysis.min_signal_strength must be within [0, 1]")
	}
	if c.Analysis.VolumeThreshold < 0 {
		return fmt.Errorf("analysis.volume_threshold cannot be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required when redis is enabled")
	}
	return nil
}

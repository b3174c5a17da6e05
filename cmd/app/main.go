package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"SigPulse/internal/di"
	"SigPulse/pkg/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	// Flag wins, then CONFIG_PATH, then the repo default.
	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/config.yaml"
	}

	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Printf("env=%s symbols=%v interval=%s", cfg.Environment, cfg.Binance.Symbols, cfg.Binance.Interval)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	if cfg.Kafka.Enabled {
		log.Printf("kafka: brokers=%v alerts_topic=%s", cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic)
	}
	if cfg.Redis.Enabled {
		log.Printf("redis: addr=%s", cfg.Redis.Addr)
	}

	// Blocks until a shutdown signal.
	return app.Run()
}

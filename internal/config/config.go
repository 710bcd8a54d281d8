package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

const (
	EnvConfigPath = "QUICKSHOW_CONFIG"
	EnvListenAddr = "QUICKSHOW_ADDR"
	EnvDBPath     = "QUICKSHOW_DB_PATH"
)

// Config holds the server's runtime settings. Values come from
// defaults, then an optional TOML file, then environment overrides.
type Config struct {
	ListenAddr        string  `toml:"listen_addr"`
	DBPath            string  `toml:"db_path"`
	MessagesPerSecond float64 `toml:"messages_per_second"`
	MessageBurst      int     `toml:"message_burst"`
	AllowedOrigin     string  `toml:"allowed_origin"`
}

func Default() Config {
	return Config{
		ListenAddr:        ":8080",
		DBPath:            "./data/quickshow.db",
		MessagesPerSecond: 100,
		MessageBurst:      200,
		AllowedOrigin:     "*",
	}
}

// Load resolves the effective configuration. path may be empty, in
// which case only defaults and env overrides apply; a missing file at
// an explicitly given path is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	// Kept for parity with the usual container convention
	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			cfg.ListenAddr = ":" + v
		}
	}
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.MessagesPerSecond <= 0 {
		return fmt.Errorf("messages_per_second must be positive")
	}
	if c.MessageBurst <= 0 {
		return fmt.Errorf("message_burst must be positive")
	}
	return nil
}

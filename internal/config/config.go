package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Gateway        string        `mapstructure:"gateway"`
	Token          string        `mapstructure:"token"`
	Room           string        `mapstructure:"room"`
	Peer           string        `mapstructure:"peer"`
	Metadata       string        `mapstructure:"metadata"`
	Publish        bool          `mapstructure:"publish"`
	Subscribe      bool          `mapstructure:"subscribe"`
	MixerOutputs   int           `mapstructure:"mixer_outputs"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
	LogLevel       string        `mapstructure:"log_level"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("gateway", "http://localhost:8080")
	v.SetDefault("room", "lobby")
	v.SetDefault("peer", "roomctl")
	v.SetDefault("publish", true)
	v.SetDefault("subscribe", true)
	v.SetDefault("mixer_outputs", 0)
	v.SetDefault("request_timeout", "5s")
	v.SetDefault("metrics_addr", ":9091")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Gateway: %s | Room: %s | Peer: %s\n", cfg.Gateway, cfg.Room, cfg.Peer)
	return &cfg, nil
}

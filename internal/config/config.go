// Package config loads server configuration from a YAML file, CORROSION_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/corrosion/corrosion-server-go/internal/game/rules"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CORROSION_LOGGING_LEVEL.
const EnvPrefix = "CORROSION"

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

type WebSocketConfig struct {
	Address      string        `mapstructure:"address"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig configures the optional action log. An empty URL disables it.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

type GameConfig struct {
	Phases   []string `mapstructure:"phases"`
	MaxGames int      `mapstructure:"max_games"`
}

// TurnStructure parses the configured phases.
func (c GameConfig) TurnStructure() (rules.TurnStructure, error) {
	return rules.ParseTurnStructure(c.Phases)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc.address", ":50051")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.websocket.address", ":8081")
	v.SetDefault("server.websocket.write_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("game.phases", []string{"UNTAP", "MAIN"})
	v.SetDefault("game.max_games", 1000)
}

// Load reads configuration from path. A missing file is not an error; the
// defaults and environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return nil, fmt.Errorf("failed to read config %s: %w", path, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.GRPC.Address == "" {
		return errors.New("server.grpc.address is required")
	}
	if c.Server.GRPC.MaxConcurrentStreams <= 0 {
		return fmt.Errorf("server.grpc.max_concurrent_streams must be positive, got %d", c.Server.GRPC.MaxConcurrentStreams)
	}
	if c.Server.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("server.websocket.write_timeout must be positive, got %s", c.Server.WebSocket.WriteTimeout)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("database.max_conns must be positive, got %d", c.Database.MaxConns)
	}
	if c.Game.MaxGames <= 0 {
		return fmt.Errorf("game.max_games must be positive, got %d", c.Game.MaxGames)
	}
	if _, err := c.Game.TurnStructure(); err != nil {
		return fmt.Errorf("game.phases: %w", err)
	}
	return nil
}

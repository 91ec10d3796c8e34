// Package cards parses card service flags and composes transport entrypoints.
package cards

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/adimis-ai/cereon-sdk/internal/platform/cmd"
	server "github.com/adimis-ai/cereon-sdk/internal/services/cards/app"
)

// Config holds card command configuration.
type Config struct {
	HTTPAddr          string        `env:"CEREON_CARDS_HTTP_ADDR"           envDefault:":8090"`
	HeartbeatInterval time.Duration `env:"CEREON_CARDS_HEARTBEAT_INTERVAL"  envDefault:"30s"`
	StreamErrorPolicy string        `env:"CEREON_CARDS_STREAM_ERROR_POLICY" envDefault:"skip"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "card HTTP listen address")
	fs.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "websocket heartbeat interval")
	fs.StringVar(&cfg.StreamErrorPolicy, "stream-error-policy", cfg.StreamErrorPolicy, "validation failure policy: fail, skip, or log")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the card app and starts transport behavior.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCards, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:          cfg.HTTPAddr,
			HeartbeatInterval: cfg.HeartbeatInterval,
			StreamErrorPolicy: cfg.StreamErrorPolicy,
		}); err != nil {
			return fmt.Errorf("serve cards: %w", err)
		}
		return nil
	})
}

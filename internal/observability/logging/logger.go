// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ncecere/voice_gateway/internal/config"
)

// Init initializes the global zerolog logger from configuration.
func Init(cfg config.LoggingConfig) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// WithComponent returns a logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

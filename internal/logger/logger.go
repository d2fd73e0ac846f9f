package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup returns a JSON logger on stderr, or a console logger with stack traces in dev mode.
func Setup(dev bool) zerolog.Logger {
	return New(os.Stderr, dev)
}

func New(out io.Writer, dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(out).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// Stage logs the completion of a provisioning stage at debug level, or the failure at error level.
func Stage(logger zerolog.Logger, stage string, started time.Time, err error) {
	if err != nil {
		logger.Error().
			Err(err).
			Str("stage", stage).
			Dur("duration", time.Since(started)).
			Msg("provisioning stage failed")
		return
	}

	logger.Debug().
		Str("stage", stage).
		Dur("duration", time.Since(started)).
		Msg("provisioning stage complete")
}

package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func Setup(dev bool) zerolog.Logger {
	return setup(os.Stderr, dev)
}

func setup(out io.Writer, dev bool) zerolog.Logger {
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

// WithBuildID attaches a fresh build ID to the logger stored in ctx so every
// message from one invocation can be correlated.
func WithBuildID(ctx context.Context, logger zerolog.Logger) (context.Context, string) {
	id := uuid.Must(uuid.NewV7()).String()
	return logger.With().Str("build_id", id).Logger().WithContext(ctx), id
}

// Error logs err with a trace ID and returns the ID so it can be shown to
// the user alongside the failure.
func Error(ctx context.Context, err error, msg string) string {
	traceID := uuid.New().String()
	zerolog.Ctx(ctx).Error().Err(err).Str("trace_id", traceID).Msg(msg)
	return traceID
}

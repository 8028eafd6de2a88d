package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "gradewise-backend"

// Setup builds the root logger. level is any zerolog level string (unknown
// values fall back to info); format "pretty" selects console output for
// development, anything else emits JSON. Every line carries a service field
// so aggregated logs stay attributable when several backends share a sink.
func Setup(level, format string) zerolog.Logger {
	var writer io.Writer
	if format == "pretty" {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	} else {
		writer = os.Stdout
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
}

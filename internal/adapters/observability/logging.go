package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB   = 10
	logMaxAgeDays  = 10
	logFileDisable = "off"
)

// NewLogger returns a zerolog Logger.
// APP_ENV=dev (or development) uses a human-friendly console writer.
// Unless logFile is empty or "off", records are also written to that file as JSON,
// rotated at 10 MB and kept for 10 days.
func NewLogger(env, logFile string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "dev" || env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	if logFile == "" || logFile == logFileDisable {
		return zerolog.New(out).With().Timestamp().Logger()
	}
	sink := &lumberjack.Logger{
		Filename: logFile,
		MaxSize:  logMaxSizeMB,
		MaxAge:   logMaxAgeDays,
	}
	return zerolog.New(zerolog.MultiLevelWriter(out, sink)).With().Timestamp().Logger()
}

// Package logger initializes and configures the global zerolog instance.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds configuration options for the application logger.
type Config struct {
	Level  string `long:"level" env:"LEVEL" description:"Log level (trace, debug, info, warn, error)" default:"info" json:"level"`
	Format string `long:"format" env:"FORMAT" description:"Log format (console or json)" default:"console" json:"format"`
	Output string `long:"output" env:"OUTPUT" description:"Log output (stdout, stderr or file path)" default:"stderr" json:"output"`
}

// Setup replaces the global logger according to cfg. The returned function
// closes the log file, if one was opened.
func Setup(cfg Config) func() {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	writer, closeFn := openOutput(cfg.Output)
	log.Logger = New(writer, cfg.Format)

	return closeFn
}

// New builds a timestamped logger writing to w in the given format.
func New(w io.Writer, format string) zerolog.Logger {
	if format == "json" {
		return zerolog.New(w).With().Timestamp().Logger()
	}

	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	if f, ok := w.(*os.File); !ok || os.Getenv("NO_COLOR") != "" || !isTerminal(f) {
		console.NoColor = true
	}

	return zerolog.New(console).With().Timestamp().Logger()
}

func openOutput(output string) (io.Writer, func()) {
	switch output {
	case "", "stderr":
		return os.Stderr, func() {}
	case "stdout":
		return os.Stdout, func() {}
	}

	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fallback := New(os.Stderr, "console")
		fallback.Error().Err(err).Str("path", output).Msg("Failed to open log file, falling back to stderr")
		return os.Stderr, func() {}
	}

	return file, func() { _ = file.Close() }
}

// isTerminal checks if the provided file descriptor refers to a character device (terminal).
func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}

	return (stat.Mode() & os.ModeCharDevice) != 0
}

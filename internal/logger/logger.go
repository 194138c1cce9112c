// Package logger configures the global zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds configuration options for the application logger.
type Config struct {
	Level  string `long:"level" env:"LEVEL" description:"Log level (trace, debug, info, warn, error)" default:"info" json:"level"`
	Format string `long:"format" env:"FORMAT" description:"Log format (console or json)" default:"console" choice:"console" choice:"json" json:"format"`
	Output string `long:"output" env:"OUTPUT" description:"Log output (stdout, stderr or file path)" default:"stderr" json:"output"`
}

// Setup installs the global logger. An unknown level falls back to info and
// an unwritable output file falls back to stderr; both are reported through
// the returned error after the logger is usable.
func Setup(cfg Config) error {
	var errs []error

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		errs = append(errs, fmt.Errorf("log level %q: using info", cfg.Level))
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	writer, err := openOutput(cfg.Output)
	if err != nil {
		errs = append(errs, fmt.Errorf("log output %q: %w", cfg.Output, err))
		writer = os.Stderr
	}

	log.Logger = New(writer, cfg.Format)

	if len(errs) > 0 {
		return fmt.Errorf("logger: %v", errs)
	}
	return nil
}

// New builds a logger writing to w in the given format.
func New(w io.Writer, format string) zerolog.Logger {
	if format == "json" {
		return zerolog.New(w).With().Timestamp().Logger()
	}

	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}

	// Colors only for a terminal and when NO_COLOR is unset
	if f, ok := w.(*os.File); ok {
		if os.Getenv("NO_COLOR") != "" || !isTerminal(f) {
			cw.NoColor = true
		}
	} else {
		cw.NoColor = true
	}

	return zerolog.New(cw).With().Timestamp().Logger()
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr", "":
		return os.Stderr, nil
	default:
		return os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	}
}

// isTerminal checks if the provided file descriptor refers to a character device (terminal).
func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}

	return (stat.Mode() & os.ModeCharDevice) != 0
}

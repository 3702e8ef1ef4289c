package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Init installs the default slog logger on stderr. Verbose lowers the level to
// Debug; format "json" selects the JSON handler, anything else the text handler.
func Init(verbose bool, format string) {
	slog.SetDefault(New(os.Stderr, verbose, format))
}

// New builds a logger writing to w.
func New(w io.Writer, verbose bool, format string) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// NewServer builds the zerolog logger used by the HTTP server. Format "json"
// writes JSON lines, anything else a console writer without colors.
func NewServer(w io.Writer, verbose bool, format string) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if !strings.EqualFold(format, "json") {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the gateway logger. Production runs want machine-readable
// JSON; anything else gets the text handler for local reading. Every record
// carries the service attribute so aggregated ERP logs stay attributable.
func NewLogger(cfg *Config) *slog.Logger {
	return NewLoggerTo(os.Stdout, cfg)
}

// NewLoggerTo is NewLogger writing to w.
func NewLoggerTo(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("service", "geox-gateway"))
}

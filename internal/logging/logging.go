// Package logging configures the process-wide slog logger: plain
// timestamped lines appended to a logfile and mirrored to stderr, with
// a numeric verbosity knob.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Level maps the CLI verbosity (1–5, higher is more verbose) onto a
// slog level: 1 and 2=ERROR, 3=WARNING, 4=INFO, 5=DEBUG. There is no
// separate critical level, so verbosity 1 still emits error records.
func Level(verbosity int) slog.Level {
	switch {
	case verbosity <= 2:
		return slog.LevelError
	case verbosity == 3:
		return slog.LevelWarn
	case verbosity == 4:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Setup opens (appends to) the logfile at path and returns a logger
// writing `YYYY-MM-DD HH:MM:SS <message>` lines to both the file and
// stderr, plus a closer for the file handle.
func Setup(path string, verbosity int) (*slog.Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: %w", err)
	}
	h := NewHandler(io.MultiWriter(f, os.Stderr), Level(verbosity))
	return slog.New(h), f.Close, nil
}

// Handler is a minimal slog.Handler emitting one plain text line per
// record. Attributes are appended as key=value pairs after the
// message.
type Handler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
}

func NewHandler(w io.Writer, level slog.Level) *Handler {
	return &Handler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{mu: h.mu, w: h.w, level: h.level, attrs: merged}
}

func (h *Handler) WithGroup(string) slog.Handler { return h }

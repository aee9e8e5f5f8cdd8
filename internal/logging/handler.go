// Package logging provides the CLI's console log formatting: a custom
// slog.Handler rendering "[HH:MM:SS LVL]: message key=value ..." the way
// setup_logging.py's Formatter and level names did for the original tool.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// levelNames mirrors setup_logging.py's logging.addLevelName calls: fixed
// four-character level tags, right-aligned so the bracket stays aligned.
var levelNames = map[slog.Level]string{
	slog.LevelDebug: "DBUG",
	slog.LevelInfo:  "INFO",
	slog.LevelWarn:  "WARN",
	slog.LevelError: " ERR",
}

const levelCritical = slog.Level(12) // above LevelError, for uncaught/fatal conditions

// Handler is a minimal slog.Handler writing one line per record to w.
type Handler struct {
	w     io.Writer
	level slog.Leveler

	mu    *sync.Mutex
	attrs []slog.Attr
	group string
}

// NewHandler returns a Handler writing to w, filtering below minLevel.
func NewHandler(w io.Writer, minLevel slog.Leveler) *Handler {
	if minLevel == nil {
		minLevel = slog.LevelInfo
	}
	return &Handler{w: w, level: minLevel, mu: &sync.Mutex{}}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, rec slog.Record) error {
	levelTag, ok := levelNames[rec.Level]
	if !ok {
		if rec.Level >= levelCritical {
			levelTag = "CRIT"
		} else {
			levelTag = rec.Level.String()
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s %s]: %s", rec.Time.Format("15:04:05"), levelTag, rec.Message)

	writeAttr := func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value.Resolve())
		return true
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	rec.Attrs(writeAttr)
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		next.group = h.group + "." + name
	} else {
		next.group = name
	}
	return &next
}

// Critical logs msg at a level above Error, rendered with the "CRIT" tag,
// mirroring the original's rootlog.critical("Uncaught exception", ...) call
// for unrecoverable conditions.
func Critical(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), levelCritical, msg, args...)
}

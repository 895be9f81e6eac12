// ABOUTME: Logger construction for lobby-scout: level, format and destination from config
// ABOUTME: Includes a handler that drops known-noisy session library messages

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/lobby-scout/internal/config"
)

// noisyPhrases are messages the session bridge emits constantly and that
// carry nothing for the operator.
var noisyPhrases = []string{
	"unknown transaction confirmation",
	"deprecated",
	"punycode",
	"mobType",
	"objectType",
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogger builds the process logger. Records go to cfg.File when set,
// otherwise to fallback. The returned closer releases the log file.
func setupLogger(cfg config.LoggingConfig, fallback io.Writer) (*slog.Logger, func() error, error) {
	level := parseLevel(cfg.Level)
	w := fallback
	closer := func() error { return nil }

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closer = f.Close
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = &colorHandler{mu: &sync.Mutex{}, w: w, level: level}
	}

	return slog.New(&noiseFilter{next: handler}), closer, nil
}

// noiseFilter drops records whose message contains a noisy phrase.
type noiseFilter struct {
	next slog.Handler
}

func (h *noiseFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *noiseFilter) Handle(ctx context.Context, r slog.Record) error {
	if isNoise(r.Message) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *noiseFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &noiseFilter{next: h.next.WithAttrs(attrs)}
}

func (h *noiseFilter) WithGroup(name string) slog.Handler {
	return &noiseFilter{next: h.next.WithGroup(name)}
}

func isNoise(msg string) bool {
	for _, p := range noisyPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return strings.Contains(msg, "WARNING :") && strings.Contains(msg, "accepted false")
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + prefix + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{mu: h.mu, w: h.w, level: h.level, attrs: newAttrs, groups: h.groups}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{mu: h.mu, w: h.w, level: h.level, attrs: h.attrs, groups: newGroups}
}

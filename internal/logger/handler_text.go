package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// levelStyle maps each level to its label and color, replacing the
// original's switch-per-call with a single lookup table.
var levelStyle = map[slog.Level]struct {
	label string
	color string
}{
	slog.LevelDebug: {"DEBUG", colorGray},
	slog.LevelInfo:  {"INFO", colorGreen},
	slog.LevelWarn:  {"WARN", colorYellow},
	slog.LevelError: {"ERROR", colorRed},
}

// priorityKeys are promoted ahead of every other attribute on a line, in
// this order, when present — they identify which connection/worker/session
// a log line belongs to, the fields an operator greps for first.
var priorityKeys = []string{KeyWorkerID, KeySessionID, KeyConnID}

// ColorTextHandler implements slog.Handler with colored, column-aligned
// text output tuned for the dispatch engine's hot log lines (accept,
// handoff, worker error).
type ColorTextHandler struct {
	opts     *slog.HandlerOptions
	w        io.Writer
	mu       *sync.Mutex
	attrs    []slog.Attr
	groups   []string
	useColor bool
}

// NewColorTextHandler creates a handler writing to w.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *ColorTextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorTextHandler{opts: opts, w: w, mu: &sync.Mutex{}, useColor: useColor}
}

// Enabled reports whether the handler handles records at level.
func (h *ColorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats and writes one log record: timestamp, level, message,
// priority attrs in priorityKeys order, then everything else in call order.
func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	timestamp := r.Time.Format("2006-01-02 15:04:05")
	levelStr := h.formatLevel(r.Level)

	var buf []byte
	buf = fmt.Appendf(buf, "[%s] [%s] %s", timestamp, levelStr, r.Message)

	all := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	all = append(all, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		all = append(all, a)
		return true
	})

	seen := make(map[string]bool, len(priorityKeys))
	for _, key := range priorityKeys {
		for _, a := range all {
			if a.Key == key {
				buf = h.appendAttr(buf, a)
				seen[key] = true
				break
			}
		}
	}
	for _, a := range all {
		if seen[a.Key] {
			continue
		}
		buf = h.appendAttr(buf, a)
	}

	buf = append(buf, '\n')

	h.mu.Lock()
	_, err := h.w.Write(buf)
	h.mu.Unlock()
	return err
}

// formatLevel returns level's label, colored if useColor. Levels between
// the four standard thresholds (e.g. a custom slog.Level(2)) take the label
// of the nearest standard level below them (slog.Level(2) prints as INFO),
// matching slog's own bucketing.
func (h *ColorTextHandler) formatLevel(level slog.Level) string {
	var lv struct {
		label string
		color string
	}
	switch {
	case level < slog.LevelInfo:
		lv = levelStyle[slog.LevelDebug]
	case level < slog.LevelWarn:
		lv = levelStyle[slog.LevelInfo]
	case level < slog.LevelError:
		lv = levelStyle[slog.LevelWarn]
	default:
		lv = levelStyle[slog.LevelError]
	}
	if h.useColor {
		return fmt.Sprintf("%s%s%s", lv.color, lv.label, colorReset)
	}
	return lv.label
}

// appendAttr formats and appends a resolved attribute to buf.
func (h *ColorTextHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	if a.Equal(slog.Attr{}) {
		return buf
	}
	a.Value = a.Value.Resolve()
	val := formatValue(a.Value)

	if h.useColor {
		return fmt.Appendf(buf, " %s%s%s=%s", colorCyan, a.Key, colorReset, val)
	}
	return fmt.Appendf(buf, " %s=%s", a.Key, val)
}

// formatValue formats a slog.Value for text output.
func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return fmt.Sprintf("%d", v.Int64())
	case slog.KindUint64:
		return fmt.Sprintf("%d", v.Uint64())
	case slog.KindFloat64:
		return fmt.Sprintf("%.3f", v.Float64())
	case slog.KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		return fmt.Sprintf("%v", v.Any())
	default:
		return v.String()
	}
}

// WithAttrs returns a new handler with additional attrs appended.
func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorTextHandler{
		opts:     h.opts,
		w:        h.w,
		mu:       h.mu,
		attrs:    append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups:   append([]string{}, h.groups...),
		useColor: h.useColor,
	}
}

// WithGroup returns a new handler scoped under name.
func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ColorTextHandler{
		opts:     h.opts,
		w:        h.w,
		mu:       h.mu,
		attrs:    append([]slog.Attr{}, h.attrs...),
		groups:   append(append([]string{}, h.groups...), name),
		useColor: h.useColor,
	}
}

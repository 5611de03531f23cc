package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorBold   = "\033[1m"
)

// textHandler renders compact single-line text records, optionally
// colorized when the output is a terminal.
type textHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	opts  slog.HandlerOptions
	color bool
	attrs []slog.Attr
	group string
}

func newTextHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &textHandler{
		mu:    &sync.Mutex{},
		w:     w,
		color: color,
	}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	return h
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	// 15:04:05.000 LEVEL message key=value ...
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	if h.color {
		b.WriteString(colorGray)
	}
	b.WriteString(ts.Format("15:04:05.000"))
	if h.color {
		b.WriteString(colorReset)
	}

	b.WriteByte(' ')
	b.WriteString(h.levelString(r.Level))
	b.WriteByte(' ')

	if h.color {
		b.WriteString(colorBold)
	}
	b.WriteString(r.Message)
	if h.color {
		b.WriteString(colorReset)
	}

	for _, a := range h.attrs {
		h.appendAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	nh.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		nh.attrs = append(nh.attrs, h.qualify(a))
	}
	return &nh
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	if nh.group != "" {
		nh.group += "." + name
	} else {
		nh.group = name
	}
	return &nh
}

func (h *textHandler) qualify(a slog.Attr) slog.Attr {
	if h.group != "" {
		a.Key = h.group + "." + a.Key
	}
	return a
}

func (h *textHandler) levelString(level slog.Level) string {
	var name, color string
	switch {
	case level >= slog.LevelError:
		name, color = "ERROR", colorRed
	case level >= slog.LevelWarn:
		name, color = "WARN ", colorYellow
	case level >= slog.LevelInfo:
		name, color = "INFO ", colorGreen
	default:
		name, color = "DEBUG", colorCyan
	}
	if !h.color {
		return name
	}
	return color + name + colorReset
}

func (h *textHandler) appendAttr(b *strings.Builder, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	a.Value = a.Value.Resolve()
	b.WriteByte(' ')
	if h.color {
		b.WriteString(colorCyan)
	}
	b.WriteString(a.Key)
	if h.color {
		b.WriteString(colorReset)
	}
	b.WriteByte('=')
	b.WriteString(h.formatValue(a.Value))
}

func (h *textHandler) formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t\n\"") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		s := fmt.Sprintf("%v", v.Any())
		if strings.ContainsAny(s, " \t\n\"") {
			return strconv.Quote(s)
		}
		return s
	}
}

package devkit

import (
	"context"
	"log/slog"
	"strings"
)

// Reporter sends log lines to a devkit. *Client implements it.
type Reporter interface {
	Log(t LogType, message string) error
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// Level is the minimum level relayed. Default: slog.LevelInfo.
	Level slog.Leveler
}

// Handler is an slog.Handler that relays records to a devkit as LOG messages.
// Errors map to ERROR, warnings to WARN and everything else to DEFAULT.
type Handler struct {
	r      Reporter
	level  slog.Leveler
	prefix string // attrs from WithAttrs, preformatted
	group  string
}

// NewHandler returns a Handler relaying to r. A nil opts uses defaults.
func NewHandler(r Reporter, opts *HandlerOptions) *Handler {
	h := &Handler{r: r, level: slog.LevelInfo}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, rec slog.Record) error {
	var b strings.Builder
	b.WriteString(rec.Message)
	b.WriteString(h.prefix)
	rec.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.group, a)
		return true
	})
	return h.r.Log(logType(rec.Level), b.String())
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, a := range attrs {
		appendAttr(&b, h.group, a)
	}
	h2 := *h
	h2.prefix = b.String()
	return &h2
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.group = h.group + name + "."
	return &h2
}

func appendAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		g := group
		if a.Key != "" {
			g += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, g, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(group)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}

func logType(l slog.Level) LogType {
	switch {
	case l >= slog.LevelError:
		return LogError
	case l >= slog.LevelWarn:
		return LogWarn
	default:
		return LogDefault
	}
}

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// PathKey is the attribute the console handler prints bare after the
// message, so per-entry records read like the plan listing:
//
//	3:04PM TRACE copy docs/a.txt bytes=512
const PathKey = "path"

// Handler is the console slog.Handler: kitchen time, level, message, the
// entry path, then key=value attributes. Colors are used only when the
// writer is a terminal.
type Handler struct {
	opts   slog.HandlerOptions
	out    io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
	pal    *palette
}

type palette struct {
	time, key, path *color.Color
	levels          map[slog.Level]*color.Color
}

func newPalette() *palette {
	return &palette{
		time: color.New(color.FgHiBlack),
		key:  color.New(color.FgCyan),
		path: color.New(color.Bold),
		levels: map[slog.Level]*color.Color{
			LevelTrace:      color.New(color.FgHiBlack),
			slog.LevelDebug: color.New(color.FgMagenta),
			slog.LevelInfo:  color.New(color.FgGreen),
			slog.LevelWarn:  color.New(color.FgYellow),
			slog.LevelError: color.New(color.FgRed, color.Bold),
		},
	}
}

// level picks the color of the nearest named level at or below l.
func (p *palette) level(l slog.Level) *color.Color {
	switch {
	case l >= slog.LevelError:
		return p.levels[slog.LevelError]
	case l >= slog.LevelWarn:
		return p.levels[slog.LevelWarn]
	case l >= slog.LevelInfo:
		return p.levels[slog.LevelInfo]
	case l >= slog.LevelDebug:
		return p.levels[slog.LevelDebug]
	default:
		return p.levels[LevelTrace]
	}
}

// NewHandler returns a console handler writing to out.
func NewHandler(out io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	h := &Handler{
		opts: *opts,
		out:  out,
		mu:   &sync.Mutex{},
	}
	if colorEnabled(out) {
		h.pal = newPalette()
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats r as a single line.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if !r.Time.IsZero() {
		b.WriteString(h.paint(h.timeColor(), r.Time.Format(time.Kitchen)))
		b.WriteByte(' ')
	}

	level := fmt.Sprintf("%-5s", levelName(r.Level))
	if h.pal != nil {
		level = h.pal.level(r.Level).Sprint(level)
	}
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(r.Message)

	var rest []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == PathKey && len(h.groups) == 0 && a.Value.Kind() == slog.KindString {
			b.WriteByte(' ')
			b.WriteString(h.paint(h.pathColor(), quoteIfNeeded(a.Value.String())))
			return true
		}
		rest = append(rest, a)
		return true
	})

	for _, a := range h.attrs {
		h.appendAttr(&b, a)
	}
	for _, a := range rest {
		h.appendAttr(&b, a)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *Handler) timeColor() *color.Color {
	if h.pal == nil {
		return nil
	}
	return h.pal.time
}

func (h *Handler) pathColor() *color.Color {
	if h.pal == nil {
		return nil
	}
	return h.pal.path
}

func (h *Handler) paint(c *color.Color, s string) string {
	if c == nil {
		return s
	}
	return c.Sprint(s)
}

func (h *Handler) appendAttr(b *strings.Builder, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	if h.pal != nil {
		key = h.pal.key.Sprint(key)
	}

	var value string
	switch v := a.Value.Resolve().Any().(type) {
	case string:
		value = quoteIfNeeded(v)
	case error:
		value = fmt.Sprintf("%q", v.Error())
	default:
		value = fmt.Sprint(v)
	}

	fmt.Fprintf(b, " %s=%s", key, value)
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// levelName renders LevelTrace as TRACE instead of slog's DEBUG-4.
func levelName(l slog.Level) string {
	if l < slog.LevelDebug {
		return "TRACE"
	}
	return l.String()
}

// WithAttrs returns a new Handler with the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := *h
	newH.attrs = make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return &newH
}

// WithGroup returns a new Handler whose keys are prefixed with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newH := *h
	newH.groups = make([]string, len(h.groups)+1)
	copy(newH.groups, h.groups)
	newH.groups[len(h.groups)] = name
	return &newH
}

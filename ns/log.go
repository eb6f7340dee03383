package ns

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// logger is the package logger. Embedders may replace the handler with
// SetLogHandler to route namespace diagnostics into their own stack.
var (
	logMu  sync.Mutex
	logger = slog.New(NewOutputHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// SetLogHandler replaces the handler used for namespace diagnostics.
func SetLogHandler(h slog.Handler) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = slog.New(h)
}

func logf(level slog.Level, o any, format string, args ...any) {
	logMu.Lock()
	l := logger
	logMu.Unlock()
	if !l.Enabled(context.Background(), level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if o != nil {
		l.Log(context.Background(), level, msg, slog.String("object", fmt.Sprint(o)))
		return
	}
	l.Log(context.Background(), level, msg)
}

// Debugf writes debug level output for o (a Chan, Path, Device or nil).
func Debugf(o any, format string, args ...any) {
	logf(slog.LevelDebug, o, format, args...)
}

// Logf writes warning level output for o. The original kernel prints
// these to the console; they flag suspicious but survivable states.
func Logf(o any, format string, args ...any) {
	logf(slog.LevelWarn, o, format, args...)
}

// Errorf writes error level output for o.
func Errorf(o any, format string, args ...any) {
	logf(slog.LevelError, o, format, args...)
}

// OutputHandler is a slog.Handler writing the classic one line
// "LEVEL  : object: msg" form.
type OutputHandler struct {
	mu    sync.Mutex
	w     io.Writer
	level slog.Leveler
	attrs []slog.Attr
}

// NewOutputHandler makes an OutputHandler writing to w. opts may be
// nil, in which case the level defaults to Info.
func NewOutputHandler(w io.Writer, opts *slog.HandlerOptions) *OutputHandler {
	h := &OutputHandler{w: w, level: slog.LevelInfo}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

// Enabled implements slog.Handler.
func (h *OutputHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *OutputHandler) Handle(_ context.Context, r slog.Record) error {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "%-7s: ", levelName(r.Level))
	object := ""
	emit := func(a slog.Attr) bool {
		if a.Key == "object" {
			object = a.Value.String()
			return true
		}
		return true
	}
	for _, a := range h.attrs {
		emit(a)
	}
	r.Attrs(emit)
	if object != "" {
		fmt.Fprintf(buf, "%s: ", object)
	}
	buf.WriteString(r.Message)
	buf.WriteByte('\n')
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// WithAttrs implements slog.Handler.
func (h *OutputHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := &OutputHandler{w: h.w, level: h.level}
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return nh
}

// WithGroup implements slog.Handler.
func (h *OutputHandler) WithGroup(name string) slog.Handler {
	return h
}

func levelName(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARNING"
	case slog.LevelError:
		return "ERROR"
	}
	return level.String()
}

// Check the interfaces are satisfied
var _ slog.Handler = (*OutputHandler)(nil)

// Package logging holds the command-line logger shared by the converter
// and measureBatch commands.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const timeFormat = "[2006/01/02 15:04:05]"

// Logger sends progress messages to InfoLog and errors to ErrorLog. It
// satisfies the converter package Logger interface.
type Logger struct {
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
}

func (l Logger) Info(message string, module string) {
	l.InfoLog.Info(message, "module", module)
}

func (l Logger) Error(message string) {
	l.ErrorLog.Error(message)
}

// New builds a Logger printing progress lines to out and JSON errors to
// errOut, both filtered at level.
func New(out io.Writer, errOut io.Writer, level slog.Leveler) Logger {
	opts := &slog.HandlerOptions{Level: level}
	return Logger{
		InfoLog:  slog.New(NewLineHandler(out, level)),
		ErrorLog: slog.New(slog.NewJSONHandler(errOut, opts)),
	}
}

// LineHandler writes one line per record, "[time] [value]... message",
// printing attribute values without their keys. Groups are flattened.
type LineHandler struct {
	out    io.Writer
	level  slog.Leveler
	mu     *sync.Mutex
	prefix []string
}

func NewLineHandler(out io.Writer, level slog.Leveler) *LineHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &LineHandler{out: out, level: level, mu: &sync.Mutex{}}
}

func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.prefix = append([]string(nil), h.prefix...)
	for _, attr := range attrs {
		clone.prefix = appendAttr(clone.prefix, attr)
	}
	return &clone
}

func (h *LineHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]string, 0, len(h.prefix)+r.NumAttrs()+2)
	if !r.Time.IsZero() {
		fields = append(fields, r.Time.Format(timeFormat))
	}
	fields = append(fields, h.prefix...)
	r.Attrs(func(attr slog.Attr) bool {
		fields = appendAttr(fields, attr)
		return true
	})
	fields = append(fields, r.Message)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, strings.Join(fields, " ")+"\n")
	return err
}

func appendAttr(fields []string, attr slog.Attr) []string {
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		for _, member := range value.Group() {
			fields = appendAttr(fields, member)
		}
		return fields
	}
	if attr.Equal(slog.Attr{}) {
		return fields
	}
	return append(fields, "["+value.String()+"]")
}

package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

func ParseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

type Field struct {
	Key   string
	Value any
}

func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type writer struct {
	out   io.Writer
	level Level
	bound []Field
	mu    *sync.Mutex
}

func New(out io.Writer, level Level) Logger {
	if out == nil {
		out = os.Stderr
	}
	return &writer{out: out, level: level, mu: &sync.Mutex{}}
}

func Nop() Logger {
	return &writer{out: io.Discard, level: Error + 1, mu: &sync.Mutex{}}
}

func (w *writer) With(fields ...Field) Logger {
	if w == nil {
		return Nop()
	}
	bound := make([]Field, 0, len(w.bound)+len(fields))
	bound = append(bound, w.bound...)
	bound = append(bound, fields...)
	return &writer{out: w.out, level: w.level, bound: bound, mu: w.mu}
}

func (w *writer) Debug(msg string, fields ...Field) { w.emit(Debug, msg, fields) }
func (w *writer) Info(msg string, fields ...Field)  { w.emit(Info, msg, fields) }
func (w *writer) Warn(msg string, fields ...Field)  { w.emit(Warn, msg, fields) }
func (w *writer) Error(msg string, fields ...Field) { w.emit(Error, msg, fields) }

func (w *writer) emit(level Level, msg string, fields []Field) {
	if w == nil || level < w.level {
		return
	}
	var b strings.Builder
	b.WriteString("ts=")
	b.WriteString(time.Now().UTC().Format(time.RFC3339Nano))
	b.WriteString(" level=")
	b.WriteString(level.String())
	b.WriteString(" msg=")
	b.WriteString(encodeValue(msg))
	for _, field := range w.bound {
		b.WriteString(" ")
		b.WriteString(field.Key)
		b.WriteString("=")
		b.WriteString(encodeValue(field.Value))
	}
	for _, field := range fields {
		b.WriteString(" ")
		b.WriteString(field.Key)
		b.WriteString("=")
		b.WriteString(encodeValue(field.Value))
	}
	b.WriteString("\n")

	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = io.WriteString(w.out, b.String())
}

func encodeValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return quote(v)
	case error:
		return quote(v.Error())
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case time.Duration:
		return quote(v.String())
	case fmt.Stringer:
		return quote(v.String())
	default:
		return quote(fmt.Sprintf("%v", v))
	}
}

func quote(value string) string {
	if value == "" {
		return `""`
	}
	if strings.ContainsAny(value, " \t\n\r\"=") {
		return strconv.Quote(value)
	}
	return value
}

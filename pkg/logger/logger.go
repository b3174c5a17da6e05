package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog and optionally mirrors error logs into a
// collector that ships them to Kafka in batches.
type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

// Config selects level, encoding and destination.
type Config struct {
	Level      string // debug, info, warn, error, fatal or panic
	Format     string // json or console
	Output     string // stdout, stderr or a file path
	TimeFormat string // layout for event timestamps
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
	}

	zl := zerolog.New(out).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &Logger{zl: zl}, nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		return f, nil
	}
}

func (l *Logger) Debug(msg string, fields ...Field) {
	e := l.zl.Debug()
	for _, f := range fields {
		f.apply(e)
	}
	e.Msg(msg)
}

func (l *Logger) Info(msg string, fields ...Field) {
	e := l.zl.Info()
	for _, f := range fields {
		f.apply(e)
	}
	e.Msg(msg)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	e := l.zl.Warn()
	for _, f := range fields {
		f.apply(e)
	}
	e.Msg(msg)
}

// Error logs at error level. Only errors are mirrored to the collector,
// warnings and below stay local.
func (l *Logger) Error(msg string, fields ...Field) {
	e := l.zl.Error()
	for _, f := range fields {
		f.apply(e)
	}
	e.Msg(msg)

	l.mirror(msg, fields)
}

// AddCollector attaches a batching collector. An existing one is closed
// and replaced.
func (l *Logger) AddCollector(config *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(config)
}

// RemoveCollector flushes and detaches the collector.
func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
	}
}

func (l *Logger) mirror(msg string, fields []Field) {
	if l.collector == nil {
		return
	}

	// Caller(2): mirror -> Error -> user code.
	_, file, line, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		parts := strings.Split(file, "SigPulse")
		caller = fmt.Sprintf("%s:%d", parts[len(parts)-1], line)
	}

	kv := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		kv[f.Key] = f.value()
	}
	l.collector.AddLog("error", msg, kv, caller)
}

// Field is one structured key/value attached to a log line.
type Field struct {
	Key string
	val interface{}
}

func (f Field) apply(e *zerolog.Event) {
	switch v := f.val.(type) {
	case string:
		e.Str(f.Key, v)
	case int:
		e.Int(f.Key, v)
	case int64:
		e.Int64(f.Key, v)
	case float64:
		e.Float64(f.Key, v)
	case bool:
		e.Bool(f.Key, v)
	case error:
		e.Err(v)
	default:
		e.Interface(f.Key, v)
	}
}

// value returns what the collector stores for this field.
func (f Field) value() interface{} {
	if err, ok := f.val.(error); ok {
		return err.Error()
	}
	return f.val
}

func String(key, value string) Field { return Field{Key: key, val: value} }

// Strings joins a list into one comma separated value.
func Strings(key string, values []string) Field {
	return Field{Key: key, val: strings.Join(values, ", ")}
}

func Int(key string, value int) Field { return Field{Key: key, val: value} }

func Int64(key string, value int64) Field { return Field{Key: key, val: value} }

func Float64(key string, value float64) Field { return Field{Key: key, val: value} }

func Bool(key string, value bool) Field { return Field{Key: key, val: value} }

// Any logs a value of arbitrary type through reflection.
func Any(key string, value interface{}) Field { return Field{Key: key, val: value} }

// Duration logs a duration as whole milliseconds.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, val: int(value / time.Millisecond)}
}

func Error(err error) Field { return Field{Key: "error", val: err} }

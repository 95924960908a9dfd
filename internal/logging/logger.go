package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"shreddy/internal/config"
)

// Logger пишет структурированные записи через zerolog.
type Logger struct {
	zl   zerolog.Logger
	file *os.File
}

var levels = map[string]zerolog.Level{
	"DEBUG": zerolog.DebugLevel,
	"INFO":  zerolog.InfoLevel,
	"WARN":  zerolog.WarnLevel,
	"ERROR": zerolog.ErrorLevel,
	"FATAL": zerolog.FatalLevel,
}

func NewLogger(cfg *config.Config, verbose bool) (*Logger, error) {
	level, ok := levels[cfg.Logging.Level]
	if !ok {
		return nil, fmt.Errorf("unknown log level: %s", cfg.Logging.Level)
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var out io.Writer = os.Stdout
	if verbose {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
	}

	l := &Logger{}

	// Автоматическое создание директории для логов
	if cfg.Logging.File != "" {
		logDir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			// Если не можем создать директорию, используем stdout
			fmt.Printf("[WARN] Не удалось создать директорию логов %s: %v\n", logDir, err)
			fmt.Printf("[WARN] Логи будут выводиться в stdout\n")
		} else if f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err != nil {
			fmt.Printf("[WARN] Не удалось открыть файл логов %s: %v\n", cfg.Logging.File, err)
			fmt.Printf("[WARN] Логи будут выводиться в stdout\n")
		} else {
			l.file = f
			out = zerolog.MultiLevelWriter(out, f)
		}
	}

	l.zl = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return l, nil
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *Logger {
	return &Logger{zl: zerolog.New(io.Discard).Level(zerolog.Disabled)}
}

// NewWriterLogger пишет JSON-записи в w (используется в тестах).
func NewWriterLogger(w io.Writer, level string) *Logger {
	lvl, ok := levels[level]
	if !ok {
		lvl = zerolog.InfoLevel
	}
	return &Logger{zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// Log пишет сообщение, fields задаются парами ключ/значение.
func (l *Logger) Log(level, message string, fields ...interface{}) {
	if l == nil {
		return
	}

	var ev *zerolog.Event
	switch level {
	case "DEBUG":
		ev = l.zl.Debug()
	case "WARN":
		ev = l.zl.Warn()
	case "ERROR":
		ev = l.zl.Error()
	case "FATAL":
		// без os.Exit: решение о завершении принимает вызывающий код
		ev = l.zl.WithLevel(zerolog.FatalLevel)
	default:
		ev = l.zl.Info()
	}
	if ev == nil {
		return
	}

	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		switch v := fields[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	if len(fields)%2 == 1 {
		ev = ev.Interface("extra", fields[len(fields)-1])
	}

	ev.Msg(message)
}

// With returns a child logger carrying a component field.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{zl: l.zl.With().Str("component", component).Logger(), file: l.file}
}

func (l *Logger) Close() error {
	if l != nil && l.file != nil {
		return l.file.Close()
	}
	return nil
}

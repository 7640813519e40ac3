package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/config"
)

var (
	loggerMu     sync.Mutex
	globalLogger *slog.Logger
	globalSink   io.Closer
)

// InitializeLogger builds the process logger from cfg and installs it as the
// slog default. Later calls return the logger built by the first one.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if globalLogger != nil {
		return globalLogger, nil
	}

	w, closer, err := openSink(cfg)
	if err != nil {
		return nil, err
	}

	globalLogger = newLogger(w, cfg.Level)
	globalSink = closer
	slog.SetDefault(globalLogger)
	return globalLogger, nil
}

// GetLogger returns the process logger, or the slog default before
// InitializeLogger has run
func GetLogger() *slog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// NewLogger builds a logger from cfg without installing it. The returned
// closer releases the log file, if any.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	w, closer, err := openSink(cfg)
	if err != nil {
		return nil, nil, err
	}
	return newLogger(w, cfg.Level), closer, nil
}

// NewLoggerWithWriter returns a JSON logger on w that adds trace_id and
// run_id from the context. A nil w discards output.
func NewLoggerWithWriter(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	return slog.New(&correlationHandler{Handler: slog.NewJSONHandler(w, opts)})
}

// CloseLogFile releases the process log file and forgets the logger
func CloseLogFile() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	var err error
	if globalSink != nil {
		err = globalSink.Close()
	}
	globalSink = nil
	globalLogger = nil
	return err
}

func newLogger(w io.Writer, level string) *slog.Logger {
	return NewLoggerWithWriter(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLogLevel(level),
	})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openSink resolves the output setting to a writer
func openSink(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	output := strings.ToLower(cfg.Output)
	if output != "file" && output != "both" {
		return os.Stdout, nopCloser{}, nil
	}

	file, err := openLogFile(cfg.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	if output == "both" {
		return io.MultiWriter(os.Stdout, file), file, nil
	}
	return file, file, nil
}

// correlationHandler adds the job correlation ids carried by the context
type correlationHandler struct {
	slog.Handler
}

func (h *correlationHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	if runID := GetRunID(ctx); runID != "" {
		r.AddAttrs(slog.String("run_id", runID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *correlationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &correlationHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *correlationHandler) WithGroup(name string) slog.Handler {
	return &correlationHandler{Handler: h.Handler.WithGroup(name)}
}

// parseLogLevel accepts slog level names plus "warning"; unknown levels mean info
func parseLogLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func openLogFile(filePath string) (*os.File, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

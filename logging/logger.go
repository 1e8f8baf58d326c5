// Package logging builds the process logger from configuration and adapts it
// to precache.Logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/unkn0wn-root/precache"
	"github.com/unkn0wn-root/precache/config"
	plogrus "github.com/unkn0wn-root/precache/log/logrus"
	pzap "github.com/unkn0wn-root/precache/log/zap"
)

// Logger is a precache.Logger plus a Sync for flushing on shutdown.
type Logger struct {
	precache.Logger
	sync func() error
}

func (l Logger) Sync() error {
	if l.sync == nil {
		return nil
	}
	return l.sync()
}

// New builds a JSON logger per cfg.Logger writing to stdout or a rotated file.
// A file that cannot be opened falls back to stdout with a warning.
func New(cfg *config.Config) (Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return Logger{}, fmt.Errorf("parse log level: %w", err)
	}

	output, outErr := buildOutput(cfg)
	if outErr != nil {
		fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", outErr)
	}

	var l Logger
	switch cfg.Logger {
	case config.LoggerZap:
		l = newZap(output, level)
	default:
		l = newLogrus(output, level)
	}

	if outErr != nil {
		l.Warn(outErr.Error(), precache.Fields{
			"action": "logger_fallback",
			"path":   cfg.LogFilePath,
		})
	}
	return l, nil
}

func newLogrus(out io.Writer, level logrus.Level) Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	return Logger{Logger: plogrus.LogrusLogger{E: logrus.NewEntry(logger)}}
}

func newZap(out io.Writer, level logrus.Level) Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(out), zapLevel(level))
	z := zap.New(core)
	return Logger{Logger: pzap.ZapLogger{L: z}, sync: z.Sync}
}

func zapLevel(l logrus.Level) zapcore.Level {
	switch l {
	case logrus.TraceLevel, logrus.DebugLevel:
		return zapcore.DebugLevel
	case logrus.InfoLevel:
		return zapcore.InfoLevel
	case logrus.WarnLevel:
		return zapcore.WarnLevel
	case logrus.ErrorLevel:
		return zapcore.ErrorLevel
	case logrus.FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.PanicLevel
	}
}

// buildOutput falls back to stdout and reports why.
func buildOutput(cfg *config.Config) (io.Writer, error) {
	if cfg.LogFilePath == "" {
		return os.Stdout, nil
	}

	dir := filepath.Dir(cfg.LogFilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.Stdout, fmt.Errorf("create log dir: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}, nil
}

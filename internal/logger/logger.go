// Package logger builds the core's structured logger: zap console output
// plus a rotating JSON file sink, with a handful of domain-scoped helpers
// layered on top.
//
// Grounded on internal/utils/logger/logger.go's New (lumberjack-backed file
// rotation tee'd with a console encoder) and its With*/TrackPerformance
// helper shape, with the trade-specific WithTask/WithPool helpers replaced
// by the copy-trading domain's own scoping (WithFollower, WithLeader).
package logger

import (
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log file rotation and verbosity, mirroring the teacher's
// internal/utils/logger.Config.
type Config struct {
	LogFile     string
	MaxSizeMB   int
	MaxAgeDays  int
	MaxBackups  int
	Compress    bool
	Development bool
}

// DefaultConfig matches the teacher's DefaultConfig: 100MB files, a week of
// backups, compressed on rotation.
func DefaultConfig(logFile string) Config {
	return Config{
		LogFile:    logFile,
		MaxSizeMB:  100,
		MaxAgeDays: 7,
		MaxBackups: 3,
		Compress:   true,
	}
}

// Logger extends zap.Logger with the core's scoping helpers.
type Logger struct {
	*zap.Logger
}

// New builds a Logger that writes human-readable output to stdout and
// structured JSON to a rotating file, matching the teacher's two-core tee.
func New(cfg Config) (*Logger, error) {
	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)

	level := zapcore.InfoLevel
	if cfg.Development {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), level),
	)

	return &Logger{
		Logger: zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)),
	}, nil
}

// WithComponent scopes a logger to one named component (e.g. "scheduler",
// "submitter"), matching the teacher's *.Named usage throughout its
// component constructors.
func (l *Logger) WithComponent(component string) *zap.Logger {
	return l.With(zap.String("component", component))
}

// WithOperation scopes a logger to one correlation-ID-tagged unit of work,
// used for a single dispatch task's log lines end to end.
func (l *Logger) WithOperation(operation string) *zap.Logger {
	return l.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.New().String()),
		zap.Time("start_time", time.Now().UTC()),
	)
}

// WithFollower scopes a logger to one follower's dispatch tasks.
func (l *Logger) WithFollower(followerID string) *zap.Logger {
	return l.With(zap.String("follower", followerID))
}

// WithLeader scopes a logger to one leader's stream and classification.
func (l *Logger) WithLeader(leader string) *zap.Logger {
	return l.With(zap.String("leader", leader))
}

// LogError logs msg at Error level with err attached, a shorthand used
// across the core's error-handling table (spec.md §7).
func (l *Logger) LogError(msg string, err error, fields ...zap.Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.Error(msg, fields...)
}

// TrackPerformance logs the start and end of a named operation along with
// its duration, for the handful of call sites that want duration logging
// without wiring through the Metrics collector.
func (l *Logger) TrackPerformance(operation string) (end func()) {
	start := time.Now()
	opLogger := l.WithOperation(operation)
	opLogger.Debug("operation started")
	return func() {
		opLogger.Debug("operation completed", zap.Duration("duration", time.Since(start)))
	}
}

// Sync flushes buffered log entries, swallowing the well-known
// stdout/stderr sync errors zap raises on some platforms when writing to a
// terminal, matching the teacher's Sync override.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if err != nil {
		msg := err.Error()
		if msg == "sync /dev/stdout: invalid argument" || msg == "sync /dev/stderr: inappropriate ioctl for device" {
			return nil
		}
	}
	return err
}

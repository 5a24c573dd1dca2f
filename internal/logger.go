package internal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the zap backed LogHandler shared by every component.
type Logger struct {
	zap       *zap.Logger
	location  *time.Location
	debugMode bool
}

func NewLogger(level, format string, location *time.Location) (*Logger, error) {
	return newLoggerWithWriter(level, format, location, os.Stderr)
}

// NewNopLogger discards everything; used where no output is wanted.
func NewNopLogger() *Logger {
	return &Logger{zap: zap.NewNop(), location: time.UTC}
}

func newLoggerWithWriter(level, format string, location *time.Location, w io.Writer) (*Logger, error) {
	var zapLevel zapcore.Level
	if level == "" {
		level = "info"
	}
	if err := zapLevel.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	if location == nil {
		location = time.UTC
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeLevel: zapcore.LowercaseLevelEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.In(location).Format("2006-01-02 15:04:05.000"))
		},
	}
	var encoder zapcore.Encoder
	switch format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "", "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zapLevel)
	return &Logger{zap: zap.New(core), location: location}, nil
}

func (l *Logger) SetDebugMode(debugMode bool) {
	l.debugMode = debugMode
}

func (l *Logger) FeatureEvent(feature, id, text string) {
	if id == "" {
		id = "*"
	}
	l.zap.Info(text, zap.String("feature", feature), zap.String("charge_point_id", id))
}

func (l *Logger) Debug(text string) {
	l.zap.Debug(text)
}

func (l *Logger) Warn(text string) {
	l.zap.Warn(text)
}

func (l *Logger) Error(text string, err error) {
	l.zap.Error(text, zap.Error(err))
}

// RawDataEvent frames are only written in debug mode.
func (l *Logger) RawDataEvent(direction, data string) {
	if !l.debugMode {
		return
	}
	l.zap.Debug("raw frame", zap.String("direction", direction), zap.String("data", data))
}

func (l *Logger) Sync() {
	_ = l.zap.Sync()
}

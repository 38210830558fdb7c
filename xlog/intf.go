package xlog

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xrbt/lib/infra"
)

type logLevel string

const (
	LogLevelDebug logLevel = "DEBUG"
	LogLevelInfo  logLevel = "INFO"
	LogLevelWarn  logLevel = "WARN"
	LogLevelError logLevel = "ERROR"
)

func (lvl logLevel) ZapLevel() zapcore.Level {
	switch lvl {
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelDebug:
		fallthrough
	default:
	}
	return zapcore.DebugLevel
}

func (lvl logLevel) String() string {
	return string(lvl)
}

// ParseLogLevel accepts the level names case-insensitively.
func ParseLogLevel(level string) (logLevel, error) {
	switch lvl := logLevel(strings.ToUpper(strings.TrimSpace(level))); lvl {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return lvl, nil
	}
	return LogLevelDebug, infra.NewErrorStack("[XLogger] unknown log level " + level)
}

type logEncoderType uint8

const (
	JSON logEncoderType = iota
	PlainText
	_encMax
)

func (typ logEncoderType) String() string {
	switch typ {
	case JSON:
		return "json"
	case PlainText:
		return "plaintext"
	}
	return "unknown"
}

func ParseLogEncoder(enc string) (logEncoderType, error) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "json":
		return JSON, nil
	case "plaintext", "text", "console":
		return PlainText, nil
	}
	return _encMax, infra.NewErrorStack("[XLogger] unknown log encoder " + enc)
}

const (
	ContextKeyMapToOmitempty = "_"
	ContextKeyMapToItself    = ""
	coreKeyIgnored           = ""
)

var encoderMap = map[logEncoderType]func(cfg zapcore.EncoderConfig) zapcore.Encoder{
	JSON:      zapcore.NewJSONEncoder,
	PlainText: zapcore.NewConsoleEncoder,
}

func getEncoderByType(typ logEncoderType) func(cfg zapcore.EncoderConfig) zapcore.Encoder {
	enc, ok := encoderMap[typ]
	if !ok {
		return zapcore.NewJSONEncoder
	}
	return enc
}

type Banner interface {
	JSON() string
	PlainText() string
}

// xLogCore is a core able to create a sibling sharing the same writer and
// level enabler but encoding entries with another config.
type xLogCore interface {
	zapcore.Core
	rebuild(cfg zapcore.EncoderConfig) zapcore.Core
}

// XLogger mainly implemented by Uber zap logger.
//
// ErrorStack prints the frames carried by an infra.ErrorStack as
// structured fields instead of the zap stacktrace string, so log
// aggregators are able to parse them.
//
// The methods with context append the fields registered by
// WithXLoggerContextFieldExtract, such as a trace ID.
//
// Log format is not recommended, because it is low performance.
type XLogger interface {
	zap() *zap.Logger

	IncreaseLogLevel(level zapcore.Level)
	Level() string
	Sync() error
	Close() error
	Banner(banner Banner)
	Named(component string) XLogger

	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(err error, msg string, fields ...zap.Field)
	ErrorStack(err error, msg string, fields ...zap.Field)

	DebugContext(ctx context.Context, msg string, fields ...zap.Field)
	InfoContext(ctx context.Context, msg string, fields ...zap.Field)
	WarnContext(ctx context.Context, msg string, fields ...zap.Field)
	ErrorContext(ctx context.Context, err error, msg string, fields ...zap.Field)
	ErrorStackContext(ctx context.Context, err error, msg string, fields ...zap.Field)

	Logf(lvl zapcore.Level, format string, args ...any)
	ErrorStackf(err error, format string, args ...any)
}

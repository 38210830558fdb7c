package xlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xrbt/lib/infra"
)

// XLogger is wrapper logger of Uber zap logger.
type xLogger struct {
	logger              atomic.Pointer[zap.Logger]
	core                zapcore.Core
	ctxFields           map[string]string
	dynamicLevelEnabler zap.AtomicLevel
	encoder             logEncoderType
	closeOnce           *sync.Once
	closers             []io.Closer
	printBanner         *sync.Once
}

func (l *xLogger) zap() *zap.Logger {
	return l.logger.Load()
}

// IncreaseLogLevel we can increase or decrease the log level concurrently.
func (l *xLogger) IncreaseLogLevel(level zapcore.Level) {
	l.dynamicLevelEnabler.SetLevel(level)
}

func (l *xLogger) Sync() error {
	return l.logger.Load().Sync()
}

func (l *xLogger) Level() string {
	return l.dynamicLevelEnabler.Level().String()
}

// Close flushes and releases the log files. Named children share the
// parent files, so closing any of them closes all.
func (l *xLogger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		for _, c := range l.closers {
			err = multierr.Append(err, c.Close())
		}
	})
	return err
}

func (l *xLogger) Named(component string) XLogger {
	core := rebuildCore(l.core, componentCoreEncoderCfg)
	child := &xLogger{
		core:                core,
		ctxFields:           l.ctxFields,
		dynamicLevelEnabler: l.dynamicLevelEnabler,
		encoder:             l.encoder,
		closeOnce:           l.closeOnce,
		closers:             l.closers,
		printBanner:         l.printBanner,
	}
	child.logger.Store(l.zap().WithOptions(
		zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }),
	).Named(component))
	return child
}

func (l *xLogger) Banner(banner Banner) {
	l.printBanner.Do(func() {
		cfg := zapcore.EncoderConfig{
			MessageKey:    "banner", // Required, but the plain text will be ignored.
			LevelKey:      coreKeyIgnored,
			EncodeLevel:   zapcore.CapitalLevelEncoder,
			TimeKey:       coreKeyIgnored,
			CallerKey:     coreKeyIgnored,
			FunctionKey:   coreKeyIgnored,
			NameKey:       coreKeyIgnored,
			StacktraceKey: coreKeyIgnored,
		}
		core := rebuildCore(l.core, cfg)
		_l := zap.New(core)
		switch l.encoder {
		case JSON:
			_l.Info(banner.JSON())
		case PlainText:
			_l.Info(banner.PlainText())
		}
	})
}

func (l *xLogger) Debug(msg string, fields ...zap.Field) {
	l.logger.Load().Debug(msg, fields...)
}

func (l *xLogger) Info(msg string, fields ...zap.Field) {
	l.logger.Load().Info(msg, fields...)
}

func (l *xLogger) Warn(msg string, fields ...zap.Field) {
	l.logger.Load().Warn(msg, fields...)
}

func (l *xLogger) Error(err error, msg string, fields ...zap.Field) {
	newFields := make([]zap.Field, 0, len(fields)+1)
	if err != nil {
		newFields = append(newFields, zap.String("error", err.Error()))
	}
	newFields = append(newFields, fields...)
	l.logger.Load().Error(msg, newFields...)
}

func errorStackFields(err error) []zap.Field {
	if err == nil {
		return []zap.Field{}
	}
	var es infra.ErrorStack
	if errors.As(err, &es) && es != nil {
		return []zap.Field{zap.Inline(es)}
	}
	return []zap.Field{zap.String("error", err.Error())}
}

func (l *xLogger) ErrorStack(err error, msg string, fields ...zap.Field) {
	newFields := append(errorStackFields(err), fields...)
	l.logger.Load().Error(msg, newFields...)
}

func (l *xLogger) DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	newFields := extractFieldsFromContext(ctx, l.ctxFields)
	newFields = append(newFields, fields...)
	l.logger.Load().Debug(msg, newFields...)
}

func (l *xLogger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	newFields := extractFieldsFromContext(ctx, l.ctxFields)
	newFields = append(newFields, fields...)
	l.logger.Load().Info(msg, newFields...)
}

func (l *xLogger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	newFields := extractFieldsFromContext(ctx, l.ctxFields)
	newFields = append(newFields, fields...)
	l.logger.Load().Warn(msg, newFields...)
}

func (l *xLogger) ErrorContext(ctx context.Context, err error, msg string, fields ...zap.Field) {
	newFields := extractFieldsFromContext(ctx, l.ctxFields)
	if err != nil {
		newFields = append(newFields, zap.String("error", err.Error()))
	}
	newFields = append(newFields, fields...)
	l.logger.Load().Error(msg, newFields...)
}

func (l *xLogger) ErrorStackContext(ctx context.Context, err error, msg string, fields ...zap.Field) {
	newFields := extractFieldsFromContext(ctx, l.ctxFields)
	newFields = append(newFields, errorStackFields(err)...)
	newFields = append(newFields, fields...)
	l.logger.Load().Error(msg, newFields...)
}

func (l *xLogger) Logf(lvl zapcore.Level, format string, args ...any) {
	l.logger.Load().Log(lvl, fmt.Sprintf(format, args...))
}

func (l *xLogger) ErrorStackf(err error, format string, args ...any) {
	l.logger.Load().Log(zap.ErrorLevel, fmt.Sprintf(format, args...), errorStackFields(err)...)
}

// XLogCoreConstructor builds one output of the logger.
type XLogCoreConstructor func(
	zapcore.LevelEnabler,
	logEncoderType,
	zapcore.LevelEncoder,
	zapcore.TimeEncoder,
) (zapcore.Core, error)

type loggerCfg struct {
	ctxFields        map[string]string
	encoderType      *logEncoderType
	lvlEncoder       zapcore.LevelEncoder
	tsEncoder        zapcore.TimeEncoder
	level            *zapcore.Level
	coreConstructors []XLogCoreConstructor
	closers          []io.Closer
}

func (cfg *loggerCfg) apply(l *xLogger) error {
	if cfg.encoderType != nil {
		l.encoder = *cfg.encoderType
	} else {
		l.encoder = JSON
	}

	if cfg.level != nil {
		l.dynamicLevelEnabler = zap.NewAtomicLevelAt(*cfg.level)
	} else {
		l.dynamicLevelEnabler = zap.NewAtomicLevelAt(getLogLevelOrDefault(os.Getenv("XLOG_LVL")))
	}

	l.ctxFields = cfg.ctxFields

	if cfg.lvlEncoder == nil {
		cfg.lvlEncoder = zapcore.CapitalLevelEncoder
	}

	if cfg.tsEncoder == nil {
		cfg.tsEncoder = zapcore.ISO8601TimeEncoder
	}

	if len(cfg.coreConstructors) == 0 {
		cfg.coreConstructors = []XLogCoreConstructor{
			newConsoleCore(nil),
		}
	}

	cores := make([]zapcore.Core, 0, len(cfg.coreConstructors))
	for _, cc := range cfg.coreConstructors {
		core, err := cc(
			l.dynamicLevelEnabler,
			l.encoder,
			cfg.lvlEncoder,
			cfg.tsEncoder,
		)
		if err != nil {
			for _, c := range cfg.closers {
				_ = c.Close()
			}
			return err
		}
		cores = append(cores, core)
	}
	l.core = XLogTeeCore(cores...)
	l.closers = cfg.closers
	return nil
}

type XLoggerOption func(*loggerCfg) error

// NewXLogger panics on an invalid option or an unopenable file.
func NewXLogger(opts ...XLoggerOption) XLogger {
	l, err := TryNewXLogger(opts...)
	if err != nil {
		panic(err)
	}
	return l
}

func TryNewXLogger(opts ...XLoggerOption) (XLogger, error) {
	cfg := &loggerCfg{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(cfg); err != nil {
			return nil, err
		}
	}
	xl := &xLogger{
		closeOnce:   &sync.Once{},
		printBanner: &sync.Once{},
	}
	if err := cfg.apply(xl); err != nil {
		return nil, err
	}

	// Disable zap logger error stack.
	l := zap.New(
		xl.core,
		zap.AddCallerSkip(1), // Use caller filename as service
		zap.AddCaller(),
	)
	xl.logger.Store(l)
	return xl, nil
}

func WithXLoggerConsoleWriter(w io.Writer) XLoggerOption {
	return func(cfg *loggerCfg) error {
		cfg.coreConstructors = append(cfg.coreConstructors, newConsoleCore(w))
		return nil
	}
}

func WithXLoggerFileWriter(coreCfg *FileCoreConfig) XLoggerOption {
	return func(cfg *loggerCfg) error {
		cfg.coreConstructors = append(cfg.coreConstructors, newFileCore(coreCfg, &cfg.closers))
		return nil
	}
}

// WithXLoggerCore plugs a foreign core, gated by the dynamic level.
func WithXLoggerCore(core zapcore.Core) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if core == nil {
			return infra.NewErrorStack("[XLogger] nil core")
		}
		cfg.coreConstructors = append(cfg.coreConstructors, func(
			lvlEnabler zapcore.LevelEnabler,
			_ logEncoderType,
			_ zapcore.LevelEncoder,
			_ zapcore.TimeEncoder,
		) (zapcore.Core, error) {
			return &leveledCore{Core: core, lvlEnabler: lvlEnabler}, nil
		})
		return nil
	}
}

func WithXLoggerEncoder(logEnc logEncoderType) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if logEnc >= _encMax {
			return infra.NewErrorStack("unknown xlogger encoder")
		}
		cfg.encoderType = &logEnc
		return nil
	}
}

func WithXLoggerLevel(lvl logLevel) XLoggerOption {
	return func(cfg *loggerCfg) error {
		_lvl := lvl.ZapLevel()
		cfg.level = &_lvl
		return nil
	}
}

func WithXLoggerLevelEncoder(lvlEnc zapcore.LevelEncoder) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if lvlEnc == nil {
			lvlEnc = zapcore.CapitalColorLevelEncoder
		}
		cfg.lvlEncoder = lvlEnc
		return nil
	}
}

func WithXLoggerTimeEncoder(tsEnc zapcore.TimeEncoder) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if tsEnc == nil {
			tsEnc = zapcore.ISO8601TimeEncoder
		}
		cfg.tsEncoder = tsEnc
		return nil
	}
}

func WithXLoggerContextFieldExtract(field string, mapTo ...string) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if len(field) == 0 {
			return nil
		}
		if cfg.ctxFields == nil {
			cfg.ctxFields = make(map[string]string, 8)
		}
		if len(mapTo) == 0 || mapTo[0] == ContextKeyMapToItself {
			mapTo = []string{field}
		}
		cfg.ctxFields[field] = mapTo[0]
		return nil
	}
}

func getLogLevelOrDefault(level string) zapcore.Level {
	if len(strings.TrimSpace(level)) == 0 {
		return zapcore.DebugLevel
	}
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return zapcore.DebugLevel
	}
	return lvl.ZapLevel()
}

// The field names are sorted to keep a stable output order.
func extractFieldsFromContext(
	ctx context.Context,
	targets map[string]string,
) []zap.Field {
	if ctx == nil || len(targets) == 0 {
		return []zap.Field{}
	}

	keys := make([]string, 0, len(targets))
	for k := range targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	newFields := make([]zap.Field, 0, len(keys))
	for _, key := range keys {
		mapTo := targets[key]
		if mapTo == ContextKeyMapToOmitempty {
			continue
		}
		if v := ctx.Value(key); v == nil {
			newFields = append(newFields, zap.String(mapTo, "nil"))
		} else {
			newFields = append(newFields, zap.Any(mapTo, v))
		}
	}
	return newFields
}

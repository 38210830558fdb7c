package xlog

import (
	"io"
	"os"

	"go.uber.org/zap/zapcore"
)

// newConsoleCore writes to stderr unless another writer is given. The
// record book menu owns stdout.
func newConsoleCore(w io.Writer) XLogCoreConstructor {
	return func(
		lvlEnabler zapcore.LevelEnabler,
		encoder logEncoderType,
		lvlEnc zapcore.LevelEncoder,
		tsEnc zapcore.TimeEncoder,
	) (zapcore.Core, error) {
		var ws zapcore.WriteSyncer
		if w == nil {
			ws = zapcore.Lock(os.Stderr)
		} else {
			ws = zapcore.Lock(zapcore.AddSync(w))
		}
		config := zapcore.EncoderConfig{
			MessageKey:    "msg",
			LevelKey:      "lvl",
			TimeKey:       "ts",
			CallerKey:     "callAt",
			EncodeCaller:  zapcore.ShortCallerEncoder,
			FunctionKey:   "fn",
			NameKey:       "component",
			EncodeName:    zapcore.FullNameEncoder,
			StacktraceKey: coreKeyIgnored,
		}
		return newCommonCore(lvlEnabler, encoder, lvlEnc, tsEnc, ws, config), nil
	}
}

package xlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ xLogCore = (*commonCore)(nil)

type commonCore struct {
	lvlEnabler zapcore.LevelEnabler
	lvlEnc     zapcore.LevelEncoder
	tsEnc      zapcore.TimeEncoder
	ws         zapcore.WriteSyncer
	enc        func(cfg zapcore.EncoderConfig) zapcore.Encoder
	core       zapcore.Core
}

func newCommonCore(
	lvlEnabler zapcore.LevelEnabler,
	encoder logEncoderType,
	lvlEnc zapcore.LevelEncoder,
	tsEnc zapcore.TimeEncoder,
	ws zapcore.WriteSyncer,
	cfg zapcore.EncoderConfig,
) *commonCore {
	cc := &commonCore{
		lvlEnabler: lvlEnabler,
		lvlEnc:     lvlEnc,
		tsEnc:      tsEnc,
		ws:         ws,
		enc:        getEncoderByType(encoder),
	}
	cfg.EncodeLevel = cc.lvlEnc
	cfg.EncodeTime = cc.tsEnc
	cc.core = zapcore.NewCore(cc.enc(cfg), cc.ws, cc.lvlEnabler)
	return cc
}

func (cc *commonCore) Enabled(lvl zapcore.Level) bool {
	return cc.lvlEnabler.Enabled(lvl)
}

func (cc *commonCore) With(fields []zap.Field) zapcore.Core {
	return cc.core.With(fields)
}

func (cc *commonCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return cc.core.Check(ent, ce)
}

func (cc *commonCore) Write(ent zapcore.Entry, fields []zap.Field) error {
	return cc.core.Write(ent, fields)
}

func (cc *commonCore) Sync() error {
	return cc.core.Sync()
}

func (cc *commonCore) rebuild(cfg zapcore.EncoderConfig) zapcore.Core {
	if cfg.EncodeLevel == nil {
		cfg.EncodeLevel = cc.lvlEnc
	}
	if cfg.EncodeTime == nil && cfg.TimeKey != coreKeyIgnored {
		cfg.EncodeTime = cc.tsEnc
	}
	return &commonCore{
		lvlEnabler: cc.lvlEnabler,
		lvlEnc:     cc.lvlEnc,
		tsEnc:      cc.tsEnc,
		ws:         cc.ws,
		enc:        cc.enc,
		core:       zapcore.NewCore(cc.enc(cfg), cc.ws, cc.lvlEnabler),
	}
}

// leveledCore gates a foreign core, e.g. a test observer, with the
// logger's dynamic level.
type leveledCore struct {
	zapcore.Core
	lvlEnabler zapcore.LevelEnabler
}

func (lc *leveledCore) Enabled(lvl zapcore.Level) bool {
	return lc.lvlEnabler.Enabled(lvl) && lc.Core.Enabled(lvl)
}

func (lc *leveledCore) With(fields []zap.Field) zapcore.Core {
	return &leveledCore{Core: lc.Core.With(fields), lvlEnabler: lc.lvlEnabler}
}

func (lc *leveledCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !lc.lvlEnabler.Enabled(ent.Level) {
		return ce
	}
	return lc.Core.Check(ent, ce)
}

// Foreign cores keep their own encoding.
func (lc *leveledCore) rebuild(zapcore.EncoderConfig) zapcore.Core {
	return lc
}

var componentCoreEncoderCfg = zapcore.EncoderConfig{
	MessageKey:    "msg",
	LevelKey:      "lvl",
	TimeKey:       "ts",
	CallerKey:     coreKeyIgnored,
	EncodeCaller:  zapcore.ShortCallerEncoder,
	FunctionKey:   coreKeyIgnored,
	NameKey:       "component",
	EncodeName:    zapcore.FullNameEncoder,
	StacktraceKey: coreKeyIgnored,
}

package xlog

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ xLogCore = (xLogMultiCore)(nil)

type xLogMultiCore []zapcore.Core

func (mc xLogMultiCore) With(fields []zap.Field) zapcore.Core {
	clone := make(xLogMultiCore, len(mc))
	for i := range mc {
		clone[i] = mc[i].With(fields)
	}
	return clone
}

func (mc xLogMultiCore) Level() zapcore.Level {
	minLvl := zapcore.InvalidLevel
	for i := range mc {
		if lvl := zapcore.LevelOf(mc[i]); minLvl == zapcore.InvalidLevel || lvl < minLvl {
			minLvl = lvl
		}
	}
	return minLvl
}

func (mc xLogMultiCore) Enabled(lvl zapcore.Level) bool {
	for i := range mc {
		if mc[i].Enabled(lvl) {
			return true
		}
	}
	return false
}

func (mc xLogMultiCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	for i := range mc {
		ce = mc[i].Check(ent, ce)
	}
	return ce
}

func (mc xLogMultiCore) Write(ent zapcore.Entry, fields []zap.Field) error {
	var err error
	for i := range mc {
		err = multierr.Append(err, mc[i].Write(ent, fields))
	}
	return err
}

func (mc xLogMultiCore) Sync() error {
	var err error
	for i := range mc {
		err = multierr.Append(err, mc[i].Sync())
	}
	return err
}

func (mc xLogMultiCore) rebuild(cfg zapcore.EncoderConfig) zapcore.Core {
	clone := make(xLogMultiCore, 0, len(mc))
	for i := range mc {
		if c, ok := mc[i].(xLogCore); ok {
			clone = append(clone, c.rebuild(cfg))
		} else {
			clone = append(clone, mc[i])
		}
	}
	return clone
}

// XLogTeeCore drops the nil cores. A single core is returned as is.
func XLogTeeCore(cores ...zapcore.Core) zapcore.Core {
	mc := make(xLogMultiCore, 0, len(cores))
	for _, c := range cores {
		if c != nil {
			mc = append(mc, c)
		}
	}
	switch len(mc) {
	case 0:
		return zapcore.NewNopCore()
	case 1:
		return mc[0]
	}
	return mc
}

// rebuildCore re-encodes every xlog owned core with cfg.
func rebuildCore(core zapcore.Core, cfg zapcore.EncoderConfig) zapcore.Core {
	if c, ok := core.(xLogCore); ok {
		return c.rebuild(cfg)
	}
	return core
}

package xlog

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/safeopen"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xrbt/lib/infra"
)

type FileCoreConfig struct {
	FilePath                string `json:"filePath" yaml:"filePath"`
	Filename                string `json:"filename" yaml:"filename"`
	FileBufferSize          int    `json:"fileBufferSize" yaml:"fileBufferSize"`                   // Bytes
	FileBufferFlushInterval int64  `json:"fileBufferFlushInterval" yaml:"fileBufferFlushInterval"` // Milliseconds
}

const (
	_minBufferFlushMs = 200
	_maxBufferFlushMs = 3000
	_maxBufferSize    = 10 << 20
)

// fileSyncer owns the file and the optional buffer ahead of it.
type fileSyncer struct {
	zapcore.WriteSyncer
	buffered *zapcore.BufferedWriteSyncer
	file     io.Closer
}

func (fs *fileSyncer) Close() error {
	var err error
	if fs.buffered != nil {
		err = multierr.Append(err, fs.buffered.Stop())
	}
	return multierr.Append(err, fs.file.Close())
}

func openFileSyncer(cfg *FileCoreConfig) (*fileSyncer, error) {
	if err := os.MkdirAll(cfg.FilePath, 0o755); err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[XLogger] unable to create log dir "+cfg.FilePath)
	}
	// Beneath keeps a relative filename from escaping the log dir.
	f, err := safeopen.OpenFileBeneath(cfg.FilePath, cfg.Filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[XLogger] unable to open log file "+cfg.Filename)
	}

	fs := &fileSyncer{file: f}
	if cfg.FileBufferSize <= 0 {
		fs.WriteSyncer = zapcore.Lock(f)
		return fs, nil
	}
	size := cfg.FileBufferSize
	if size > _maxBufferSize {
		size = _maxBufferSize
	}
	interval := cfg.FileBufferFlushInterval
	if interval < _minBufferFlushMs {
		interval = _minBufferFlushMs
	} else if interval > _maxBufferFlushMs {
		interval = _maxBufferFlushMs
	}
	fs.buffered = &zapcore.BufferedWriteSyncer{
		WS:            f,
		Size:          size,
		FlushInterval: time.Duration(interval) * time.Millisecond,
	}
	fs.WriteSyncer = fs.buffered
	return fs, nil
}

func newFileCore(cfg *FileCoreConfig, closers *[]io.Closer) XLogCoreConstructor {
	return func(
		lvlEnabler zapcore.LevelEnabler,
		encoder logEncoderType,
		lvlEnc zapcore.LevelEncoder,
		tsEnc zapcore.TimeEncoder,
	) (zapcore.Core, error) {
		if cfg == nil {
			cfg = &FileCoreConfig{}
		}
		if cfg.FilePath == "" {
			cfg.FilePath = os.TempDir()
		}
		if cfg.Filename == "" {
			cfg.Filename = filepath.Base(os.Args[0]) + "_xlog.log"
		}
		fs, err := openFileSyncer(cfg)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, fs)

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
		return newCommonCore(lvlEnabler, encoder, lvlEnc, tsEnc, fs, config), nil
	}
}

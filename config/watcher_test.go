package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/benz9527/xrbt/xlog"
)

func TestWatcherReloadsLogLevel(t *testing.T) {
	t.Setenv("XLOG_LVL", "")
	path := writeYAML(t, "log:\n  level: INFO\n")
	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := xlog.NewXLogger(append(cfg.LoggerOptions()[:1], xlog.WithXLoggerCore(core))...)
	require.Equal(t, "info", logger.Level())

	w, err := NewWatcher(cfg, logger)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer func() {
		require.NoError(t, w.Close())
	}()

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: DEBUG\n"), 0o644))
	require.Eventually(t, func() bool {
		return logger.Level() == "debug"
	}, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		return logs.FilterMessage("[config] log level reloaded").Len() > 0
	}, 3*time.Second, 20*time.Millisecond)

	// An invalid level is rejected, the live level stays.
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: LOUD\n"), 0o644))
	require.Eventually(t, func() bool {
		return logs.FilterMessage("[config] reload rejected").Len() > 0
	}, 3*time.Second, 20*time.Millisecond)
	require.Equal(t, "debug", logger.Level())
}

func TestWatcherPinnedLevel(t *testing.T) {
	t.Setenv("XLOG_LVL", "")
	path := writeYAML(t, "log:\n  level: INFO\n")
	cfg, err := Load([]string{"--config", path, "--log-level", "WARN"})
	require.NoError(t, err)

	core, _ := observer.New(zapcore.DebugLevel)
	logger := xlog.NewXLogger(append(cfg.LoggerOptions()[:1], xlog.WithXLoggerCore(core))...)
	w, err := NewWatcher(cfg, logger)
	require.NoError(t, err)

	// Reload directly, the flag keeps winning.
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: DEBUG\n"), 0o644))
	w.reload()
	require.Equal(t, "warn", logger.Level())
	require.Equal(t, "WARN", cfg.Log.Level)
	require.NoError(t, w.Close())
}

func TestWatcherKeepsEnvLevel(t *testing.T) {
	t.Setenv("XLOG_LVL", "DEBUG")
	path := writeYAML(t, "metrics:\n  exporter: none\n")
	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)
	require.Equal(t, "DEBUG", cfg.Log.Level)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := xlog.NewXLogger(append(cfg.LoggerOptions()[:1], xlog.WithXLoggerCore(core))...)
	w, err := NewWatcher(cfg, logger)
	require.NoError(t, err)

	// The file still names no level, the env one stays.
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  exporter: stdout\n"), 0o644))
	w.reload()
	require.Equal(t, "debug", logger.Level())
	require.Equal(t, "DEBUG", cfg.Log.Level)
	require.Zero(t, logs.FilterMessage("[config] log level reloaded").Len())
	require.NoError(t, w.Close())
}

func TestNewWatcherWithoutFile(t *testing.T) {
	_, err := NewWatcher(Default(), xlog.NewXLogger(xlog.WithXLoggerCore(zapcore.NewNopCore())))
	require.Error(t, err)
}

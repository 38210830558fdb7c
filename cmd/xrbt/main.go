package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xrbt/config"
	"github.com/benz9527/xrbt/lib/tree"
	"github.com/benz9527/xrbt/observability"
	"github.com/benz9527/xrbt/shell"
	"github.com/benz9527/xrbt/xlog"
)

type banner struct{}

func (banner) JSON() string {
	return `{"app":"xrbt","desc":"red-black tree record book"}`
}

func (banner) PlainText() string {
	return `
__  ___ __ ___ _____
\ \/ / '__| _ )_   _|
 >  <| |  | _ \ | |
/_/\_\_|  |___/ |_|
`
}

// console is the terminal the shell talks to.
type console struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (xlog.XLogger, error) {
	opts := append(cfg.LoggerOptions(), xlog.WithXLoggerContextFieldExtract(shell.SessionContextKey))
	logger, err := xlog.TryNewXLogger(opts...)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(logger.Close))
	return logger, nil
}

func newMetrics(lc fx.Lifecycle, cfg *config.Config, logger xlog.XLogger) (*observability.Metrics, error) {
	m, err := observability.NewMeterProvider(
		context.Background(),
		cfg.Metrics,
		observability.WithExporterLogger(logger.Named("metrics")),
	)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(m.Shutdown))
	if cfg.Metrics.Exporter != config.ExporterNone {
		if err = observability.InitAppStats("shell", m.Provider); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func newRecords(lc fx.Lifecycle, cfg *config.Config, m *observability.Metrics) tree.RBTree[string, string] {
	records := observability.NewInstrumentedTree[string, string](
		tree.NewRBTree[string, string](tree.WithRBTreeDuplicatePolicy[string, string](cfg.DuplicatePolicy())),
		m.Provider,
	)
	lc.Append(fx.StopHook(records.Close))
	return records
}

func newPrompter(cfg *config.Config, c console) shell.Prompter {
	if cfg.Shell.Prompt == config.PromptInteractive {
		return shell.NewInteractivePrompter(c.in, c.out)
	}
	return shell.NewLinePrompter(c.in, c.out)
}

func newShell(records tree.RBTree[string, string], prompter shell.Prompter, c console, logger xlog.XLogger) *shell.Shell {
	return shell.NewShell(records, prompter, c.out, logger.Named("shell"))
}

func setMaxProcs(lc fx.Lifecycle, logger xlog.XLogger) error {
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Logf(zapcore.DebugLevel, format, args...)
	}))
	if err != nil {
		return err
	}
	lc.Append(fx.StopHook(undo))
	return nil
}

func watchConfig(lc fx.Lifecycle, cfg *config.Config, logger xlog.XLogger) error {
	if cfg.Path() == "" {
		return nil
	}
	w, err := config.NewWatcher(cfg, logger.Named("config"))
	if err != nil {
		return err
	}
	lc.Append(fx.StartStopHook(w.Start, w.Close))
	return nil
}

// shellRunner drops the logs of the shell goroutine once the app stops, the
// logger is closed by a later stop hook.
type shellRunner struct {
	mu      sync.Mutex
	stopped bool
	logger  xlog.XLogger
}

func (r *shellRunner) log(fn func(logger xlog.XLogger)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	fn(r.logger)
	return true
}

func (r *shellRunner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
}

func runShell(lc fx.Lifecycle, sh *shell.Shell, shutdowner fx.Shutdowner, logger xlog.XLogger) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = shell.WithSession(ctx, strconv.FormatInt(time.Now().UnixNano(), 36))
	runner := &shellRunner{logger: logger}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Banner(banner{})
			go func() {
				code := 0
				if err := sh.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					runner.log(func(logger xlog.XLogger) {
						logger.ErrorStackContext(ctx, err, "shell stopped")
					})
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					runner.log(func(logger xlog.XLogger) {
						logger.ErrorContext(ctx, err, "shutdown failed")
					})
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			runner.stop()
			cancel()
			return nil
		},
	})
}

func appOptions(cfg *config.Config, c console) []fx.Option {
	return []fx.Option{
		fx.Supply(cfg, c),
		fx.Provide(
			newLogger,
			newMetrics,
			newRecords,
			newPrompter,
			newShell,
		),
		fx.WithLogger(func(logger xlog.XLogger) fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
		fx.Invoke(setMaxProcs, watchConfig, runShell),
	}
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	app := fx.New(appOptions(cfg, console{in: os.Stdin, out: os.Stdout})...)
	if err = app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// Blocks until the shell exits or a signal arrives.
	app.Run()
}
